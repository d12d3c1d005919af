/*
Package dbushelper provides DBus specific helpers to:
- Translate BlueZ device and profile paths to Bluetooth addresses.
- Marshal a map of DBus variants to a provided struct.
- Wrap errors published from a signal handler with
DBus signal data.

It also has constants defined for the DBus bus, object and
interface names used by the applet.
*/
package dbushelper
