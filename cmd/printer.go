package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// printWarn prints a warning to the screen.
func printWarn(message string) {
	message = "[-] " + message

	color.New(color.FgYellow, color.Bold).Println(message)
}

// printError prints an error to the screen.
func printError(err error) {
	message := "[!] " + err.Error()

	color.New(color.FgRed, color.Bold).Println(message)
}

// printList prints a titled list of items to the screen.
func printList(title string, items []string) {
	color.New(color.Bold).Println(cases.Title(language.English).String(title) + ":")

	if len(items) == 0 {
		fmt.Println("  (none)")
		return
	}

	for _, item := range items {
		fmt.Println("- " + item)
	}
}
