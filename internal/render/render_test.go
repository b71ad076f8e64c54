package render

import (
	"strings"
	"testing"
	"text/template"

	"jellydiscord/internal/model"
)

func testColors() Colors {
	return Colors{
		NewItem:     0x2ecc71,
		Resolution:  0x3498db,
		Codec:       0x9b59b6,
		AudioCodec:  0xe67e22,
		HDRStatus:   0xf1c40f,
		ProviderIDs: 0x1abc9c,
		Default:     0x95a5a6,
	}
}

func testRecord() *model.Record {
	return &model.Record{
		ID:   "item-1",
		Name: "Arrival",
		Kind: model.KindMovie,
		Year: 2016,
		File: model.FileInfo{LibraryName: "Movies"},
	}
}

func TestRenderNewItemIndividual(t *testing.T) {
	r, err := New(testColors(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msg := r.Render(model.ActionNewItem, ModeIndividual, testRecord(), "https://example.com/thumb.jpg", nil, "https://jelly.example.com", model.Bundle{})
	if len(msg.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(msg.Embeds))
	}
	embed := msg.Embeds[0]
	if !strings.Contains(embed.Title, "New") {
		t.Errorf("title = %q, want it to mention New", embed.Title)
	}
	if !strings.Contains(embed.Description, "Arrival") {
		t.Errorf("description = %q, want it to mention Arrival", embed.Description)
	}
	if embed.Color != testColors().NewItem {
		t.Errorf("color = %d, want NewItem color", embed.Color)
	}
	if embed.Thumbnail == nil || embed.Thumbnail.URL != "https://example.com/thumb.jpg" {
		t.Errorf("thumbnail not set correctly: %+v", embed.Thumbnail)
	}
}

func TestRenderUpgradedItemColorFollowsFirstChange(t *testing.T) {
	r, err := New(testColors(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	changes := []model.Change{
		{Type: model.ChangeResolution, Description: "1080p -> 2160p"},
		{Type: model.ChangeCodec, Description: "h264 -> hevc"},
	}
	msg := r.Render(model.ActionUpgradedItem, ModeIndividual, testRecord(), "", changes, "", model.Bundle{})
	embed := msg.Embeds[0]
	if embed.Color != testColors().Resolution {
		t.Errorf("color = %d, want Resolution color", embed.Color)
	}
	if len(embed.Fields) != 2 {
		t.Fatalf("expected 2 change fields, got %d", len(embed.Fields))
	}
}

func TestRenderGroupedModeProducesTitledEmbed(t *testing.T) {
	r, err := New(testColors(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msg := r.Render(model.ActionNewItem, ModeGrouped, testRecord(), "", nil, "", model.Bundle{})
	if len(msg.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(msg.Embeds))
	}
	if msg.Embeds[0].Title == "" {
		t.Errorf("expected grouped candidate or fallback to produce a title")
	}
}

func TestRenderMissingTemplateFallsBackToDeterministicEmbed(t *testing.T) {
	r := &Renderer{templates: map[string]*template.Template{}, colors: testColors(), stats: map[string]*stat{}}
	msg := r.Render(model.ActionNewItem, ModeIndividual, testRecord(), "", nil, "", model.Bundle{})
	if len(msg.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(msg.Embeds))
	}
	if msg.Embeds[0].Title == "" {
		t.Errorf("expected fallback embed to have a title")
	}
}

func TestCandidateListsOrdering(t *testing.T) {
	cases := []struct {
		action model.Action
		mode   GroupingMode
		want   []string
	}{
		{model.ActionNewItem, ModeIndividual, []string{"new_item"}},
		{model.ActionNewItem, ModeByEvent, []string{"new_items_by_event", "new_item"}},
		{model.ActionNewItem, ModeByType, []string{"new_items_by_type", "new_item"}},
		{model.ActionNewItem, ModeGrouped, []string{"new_items_grouped", "new_item"}},
		{model.ActionUpgradedItem, ModeByEvent, []string{"upgraded_items_by_event", "upgraded_item"}},
		{model.ActionUpgradedItem, ModeByType, []string{"upgraded_items_by_type", "upgraded_item"}},
		{model.ActionUpgradedItem, ModeGrouped, []string{"upgraded_items_grouped", "upgraded_item"}},
	}
	for _, tc := range cases {
		got := candidateLists(tc.action, tc.mode)
		if len(got) != len(tc.want) {
			t.Fatalf("candidateLists(%s, %s) = %v, want %v", tc.action, tc.mode, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("candidateLists(%s, %s)[%d] = %q, want %q", tc.action, tc.mode, i, got[i], tc.want[i])
			}
		}
	}
}

func TestStatsSnapshotTracksRenderedTemplates(t *testing.T) {
	r, err := New(testColors(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Render(model.ActionNewItem, ModeIndividual, testRecord(), "", nil, "", model.Bundle{})
	r.Render(model.ActionNewItem, ModeIndividual, testRecord(), "", nil, "", model.Bundle{})

	snap := r.StatsSnapshot()
	if snap.Count != 2 {
		t.Errorf("Count = %d, want 2", snap.Count)
	}
	if snap.SlowestName != "new_item" {
		t.Errorf("SlowestName = %q, want new_item", snap.SlowestName)
	}
}
