package logging

import "strings"

// composeSubject builds the "Item #<id> (<action>)" style subject string
// used in console output headers.
func composeSubject(itemID, action string) string {
	itemID = strings.TrimSpace(itemID)
	action = strings.TrimSpace(action)
	switch {
	case itemID == "" && action == "":
		return ""
	case itemID != "" && action != "":
		return "Item #" + itemID + " (" + action + ")"
	case itemID != "":
		return "Item #" + itemID
	default:
		return action
	}
}
