// ABOUTME: AppEntry, the launchable tile, and its mapping to store documents
// ABOUTME: Field names match the documents written by earlier clients

package dashboard

import (
	"time"

	"github.com/2389/appland/internal/store"
)

// CollectionName is the store collection holding app entries
const CollectionName = "apps"

// Document field names
const (
	FieldName      = "name"
	FieldURL       = "url"
	FieldIcon      = "icon"
	FieldColor     = "color"
	FieldCreatedAt = "createdAt"
)

// AppEntry is one tile on the dashboard
type AppEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// Glyph returns the icon glyph for the entry, falling back to the default.
func (e AppEntry) Glyph() string {
	return IconGlyph(e.Icon)
}

// EntryFromDocument maps a store document to an AppEntry, attaching the
// document ID. Missing fields map to empty values.
func EntryFromDocument(doc store.Document) AppEntry {
	return AppEntry{
		ID:        doc.ID,
		Name:      doc.Fields.String(FieldName),
		URL:       doc.Fields.String(FieldURL),
		Icon:      doc.Fields.String(FieldIcon),
		Color:     doc.Fields.String(FieldColor),
		CreatedAt: doc.Fields.Time(FieldCreatedAt),
	}
}

// EntriesFromSnapshot maps every document of snap, keeping snapshot order.
func EntriesFromSnapshot(snap store.Snapshot) []AppEntry {
	entries := make([]AppEntry, len(snap.Documents))
	for i, doc := range snap.Documents {
		entries[i] = EntryFromDocument(doc)
	}
	return entries
}

// contentFields returns the editable fields. ID and CreatedAt are excluded.
func (e AppEntry) contentFields() store.Fields {
	return store.Fields{
		FieldName:  e.Name,
		FieldURL:   e.URL,
		FieldIcon:  e.Icon,
		FieldColor: e.Color,
	}
}

// insertFields returns the fields written when the entry is created.
func (e AppEntry) insertFields() store.Fields {
	f := e.contentFields()
	f[FieldCreatedAt] = e.CreatedAt
	return f
}
