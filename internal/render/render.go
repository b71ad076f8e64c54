// Package render binds a Media Record plus its enrichment bundle into a
// channel-specific structured Discord message via a named-template
// registry, selected by (action, grouping mode).
package render

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"text/template"
	"time"

	"jellydiscord/internal/metrics"
	"jellydiscord/internal/model"
)

//go:embed templates/*.tmpl
var defaultTemplatesFS embed.FS

// GroupingMode selects which named-template family a webhook's messages
// render through.
type GroupingMode string

const (
	ModeIndividual GroupingMode = "individual"
	ModeNone       GroupingMode = "none"
	ModeByEvent    GroupingMode = "by_event"
	ModeByType     GroupingMode = "by_type"
	ModeGrouped    GroupingMode = "grouped"
)

// candidateLists maps (action, mode) to the ordered template names tried,
// per spec.md §4.F's table.
func candidateLists(action model.Action, mode GroupingMode) []string {
	isNew := action == model.ActionNewItem
	base := "new_item"
	if !isNew {
		base = "upgraded_item"
	}
	switch mode {
	case ModeByEvent:
		return []string{base + "s_by_event", base}
	case ModeByType:
		return []string{base + "s_by_type", base}
	case ModeGrouped:
		return []string{base + "s_grouped", base}
	default: // none, individual, or anything unrecognized
		return []string{base}
	}
}

// stat tracks one template's render-time statistics.
type stat struct {
	count int64
	total time.Duration
	max   time.Duration
}

// Renderer owns the named-template registry and per-template latency
// statistics.
type Renderer struct {
	templates map[string]*template.Template
	colors    Colors

	mu    sync.Mutex
	stats map[string]*stat
}

// New compiles the embedded default templates, optionally overlaid by a
// caller-supplied template directory (takes precedence over the embedded
// defaults for any name they share).
func New(colors Colors, overrideFS fs.FS) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		colors:    colors,
		stats:     make(map[string]*stat),
	}
	if err := r.loadFS(defaultTemplatesFS, "templates"); err != nil {
		return nil, fmt.Errorf("load default templates: %w", err)
	}
	if overrideFS != nil {
		if err := r.loadFS(overrideFS, "."); err != nil {
			return nil, fmt.Errorf("load template overrides: %w", err)
		}
	}
	return r, nil
}

func (r *Renderer) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmpl") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		path := entry.Name()
		if dir != "." {
			path = dir + "/" + entry.Name()
		}
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", path, err)
		}
		tmpl, err := template.New(name).Parse(string(raw))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}
		r.templates[name] = tmpl
	}
	return nil
}

// Render binds ctx's fields into a structured Discord message by trying
// each template candidate for (action, mode) in order. Rendering errors
// (missing template, execution error) fall through to the next candidate;
// if all candidates fail, a deterministic minimal embed is produced.
func (r *Renderer) Render(action model.Action, mode GroupingMode, record *model.Record, thumbnailURL string, changes []model.Change, serverBaseURL string, bundle model.Bundle) model.DiscordMessage {
	color := colorFor(action, changes, r.colors)
	ctx := newContext(record, action, thumbnailURL, changes, serverBaseURL, bundle, color)

	for _, name := range candidateLists(action, mode) {
		embed, err := r.renderOne(name, ctx)
		if err == nil {
			return model.DiscordMessage{Embeds: []model.DiscordEmbed{embed}}
		}
	}
	return model.DiscordMessage{Embeds: []model.DiscordEmbed{fallbackEmbed(record, action, color)}}
}

func (r *Renderer) renderOne(name string, ctx Context) (model.DiscordEmbed, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return model.DiscordEmbed{}, fmt.Errorf("render: no template named %q", name)
	}

	started := time.Now()
	title, titleErr := execNamed(tmpl, "title", ctx)
	description, descErr := execNamed(tmpl, "description", ctx)
	elapsed := time.Since(started)
	r.recordStat(name, elapsed)
	metrics.RecordRender(name, elapsed)

	if titleErr != nil && descErr != nil {
		return model.DiscordEmbed{}, fmt.Errorf("render template %q: %w / %w", name, titleErr, descErr)
	}
	if strings.TrimSpace(title) == "" && strings.TrimSpace(description) == "" {
		return model.DiscordEmbed{}, fmt.Errorf("render template %q: produced empty embed", name)
	}

	embed := model.DiscordEmbed{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Color:       ctx.Color,
		Fields:      changeFields(ctx.Changes),
		Timestamp:   ctx.Timestamp,
	}
	if ctx.ThumbnailURL != "" {
		embed.Thumbnail = &model.DiscordEmbedImage{URL: ctx.ThumbnailURL}
	}
	if footer := footerText(ctx); footer != "" {
		embed.Footer = &model.DiscordEmbedFooter{Text: footer}
	}
	return embed, nil
}

func execNamed(tmpl *template.Template, name string, ctx Context) (string, error) {
	sub := tmpl.Lookup(name)
	if sub == nil {
		return "", fmt.Errorf("no %q block", name)
	}
	var buf bytes.Buffer
	if err := sub.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func changeFields(changes []model.Change) []model.DiscordEmbedField {
	if len(changes) == 0 {
		return nil
	}
	fields := make([]model.DiscordEmbedField, 0, len(changes))
	for _, c := range changes {
		fields = append(fields, model.DiscordEmbedField{
			Name:   string(c.Type),
			Value:  c.Description,
			Inline: true,
		})
	}
	return fields
}

func footerText(ctx Context) string {
	if ctx.Record == nil || ctx.Record.Server.Name == "" {
		return ""
	}
	return ctx.Record.Server.Name
}

// Stats is a snapshot of render statistics across templates: count, total
// and slowest wall-clock duration, and which template was slowest overall.
type Stats struct {
	Count       int64
	Total       time.Duration
	Slowest     time.Duration
	SlowestName string
}

func (r *Renderer) recordStat(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[name]
	if !ok {
		s = &stat{}
		r.stats[name] = s
	}
	s.count++
	s.total += d
	if d > s.max {
		s.max = d
	}
}

// StatsSnapshot aggregates render latency across every template invoked so far.
func (r *Renderer) StatsSnapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out Stats
	for name, s := range r.stats {
		out.Count += s.count
		out.Total += s.total
		if s.max > out.Slowest {
			out.Slowest = s.max
			out.SlowestName = name
		}
	}
	return out
}
