package render

import (
	"fmt"

	"jellydiscord/internal/model"
)

// fallbackEmbed builds the deterministic minimal embed used when every
// template candidate for an action fails, per spec.md §4.F. It depends
// only on the record and action, never on template state.
func fallbackEmbed(record *model.Record, action model.Action, color int) model.DiscordEmbed {
	title := fmt.Sprintf("%s: %s", action, record.Name)
	if action == model.ActionNewItem {
		title = fmt.Sprintf("New %s Added", record.Kind)
	} else if action == model.ActionUpgradedItem {
		title = fmt.Sprintf("%s Upgraded", record.Kind)
	}
	return model.DiscordEmbed{
		Title:       title,
		Description: record.Name,
		Color:       color,
	}
}
