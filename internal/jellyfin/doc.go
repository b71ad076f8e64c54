// Package jellyfin implements the HTTP client used to pull library items
// from a Jellyfin server's Items API and convert them into the bridge's
// canonical Media Record shape.
package jellyfin
