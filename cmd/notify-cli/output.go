package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// Printer renders API results as a table or as indented JSON.
type Printer struct {
	Out    io.Writer
	Format string
}

func (p *Printer) json(v any) (bool, error) {
	if p.Format != "json" {
		return false, nil
	}
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

func (p *Printer) Catalog(entries []CatalogEntry) error {
	if ok, err := p.json(entries); ok {
		return err
	}
	fmt.Fprintf(p.Out, "%-36s %-12s %-9s %-22s %s\n", "EVENT TYPE", "MODULE", "PRIORITY", "AUDIENCE", "DESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(p.Out, "%-36s %-12s %-9s %-22s %s\n", e.EventType, e.Module, e.DefaultPriority, e.DefaultAudience, e.Description)
	}
	return nil
}

func (p *Printer) Emit(r EmitResponse) error {
	if ok, err := p.json(r); ok {
		return err
	}
	fmt.Fprintf(p.Out, "Status: %s\n", r.Status)
	if r.EventID == "" {
		return nil
	}
	fmt.Fprintf(p.Out, "Event ID: %s\n", r.EventID)
	fmt.Fprintf(p.Out, "Recipients: %d\n", r.Recipients)
	fmt.Fprintf(p.Out, "Chunks: %d committed, %d failed\n", r.ChunksCommitted, r.ChunksFailed)
	if r.Error != "" {
		fmt.Fprintf(p.Out, "Error: %s\n", r.Error)
	}
	return nil
}

func (p *Printer) Feed(f Feed) error {
	if ok, err := p.json(f); ok {
		return err
	}
	fmt.Fprintf(p.Out, "%-36s %-4s %-9s %-20s %s\n", "ID", "READ", "PRIORITY", "CREATED", "TITLE")
	for _, n := range f.Items {
		read := "no"
		if n.Read {
			read = "yes"
		}
		fmt.Fprintf(p.Out, "%-36s %-4s %-9s %-20s %s\n", n.ID, read, n.Priority, n.CreatedAt.Format("2006-01-02 15:04:05"), n.Title)
	}
	fmt.Fprintf(p.Out, "\n%d unread\n", f.Unread)
	return nil
}

func (p *Printer) Count(label string, n int) error {
	if ok, err := p.json(map[string]int{label: n}); ok {
		return err
	}
	fmt.Fprintf(p.Out, "%s: %d\n", label, n)
	return nil
}

func (p *Printer) Members(ms []Member) error {
	if ok, err := p.json(ms); ok {
		return err
	}
	fmt.Fprintf(p.Out, "%-36s %-16s %-24s %-28s %s\n", "USER ID", "ROLE", "NAME", "EMAIL", "ACTIVE")
	for _, m := range ms {
		fmt.Fprintf(p.Out, "%-36s %-16s %-24s %-28s %t\n", m.UserID, m.Role, m.DisplayName, m.Email, m.IsActive)
	}
	return nil
}

func (p *Printer) MemberPage(pg MemberPage) error {
	if ok, err := p.json(pg); ok {
		return err
	}
	if err := p.Members(pg.Items); err != nil {
		return err
	}
	fmt.Fprintf(p.Out, "\nPage %d of %d (%d total)\n", pg.Page, pg.TotalPages, pg.Total)
	return nil
}

func (p *Printer) Settings(s Settings) error {
	if ok, err := p.json(s); ok {
		return err
	}
	fmt.Fprintf(p.Out, "Emit rate limit: %d per %s\n", s.EmitRateLimit, s.EmitRateWindow)
	fmt.Fprintf(p.Out, "Feed limit: %d\n", s.FeedLimit)
	return nil
}

func (p *Printer) Health(h HealthResponse) error {
	if ok, err := p.json(h); ok {
		return err
	}
	fmt.Fprintf(p.Out, "Status: %s\n", h.Status)
	fmt.Fprintf(p.Out, "Version: %s\n", h.Version)
	fmt.Fprintf(p.Out, "Database: %s\n", h.DB)
	fmt.Fprintf(p.Out, "Cache: %s\n", h.Cache)
	fmt.Fprintf(p.Out, "Dispatch mode: %s\n", h.DispatchMode)
	return nil
}
