package patch

import (
	"fmt"

	"github.com/mitchellh/copystructure"
)

var (
	bioListFields   = []string{"summary", "highlights"}
	bioScalarFields = []string{"name", "title", "location"}
)

// Patch is one (operation, section) variant. The set of variants is closed.
type Patch interface {
	Operation() Operation
	Section() Section
	apply(doc Document) error
}

// Replace swaps the whole document for Content.
type Replace struct{ Content Document }

// BioAppend extends summary/highlights and overwrites scalar bio fields.
type BioAppend struct {
	Lists   map[string][]any
	Scalars map[string]string
}

// ListAppend extends the services or projects array.
type ListAppend struct {
	Target Section
	Intro  *string
	Items  []any
}

// ContactAppend merges string fields into contact.
type ContactAppend struct{ Fields map[string]string }

// ListDelete drops services/projects entries by name.
type ListDelete struct {
	Target Section
	Names  []string
}

// BioDelete drops exact string matches from summary/highlights.
type BioDelete struct{ Remove map[string][]string }

// ContactDelete blanks the named contact fields.
type ContactDelete struct{ Keys []string }

func (Replace) Operation() Operation       { return OpReplace }
func (Replace) Section() Section           { return "" }
func (BioAppend) Operation() Operation     { return OpAppend }
func (BioAppend) Section() Section         { return SectionBio }
func (p ListAppend) Operation() Operation  { return OpAppend }
func (p ListAppend) Section() Section      { return p.Target }
func (ContactAppend) Operation() Operation { return OpAppend }
func (ContactAppend) Section() Section     { return SectionContact }
func (ListDelete) Operation() Operation    { return OpDelete }
func (p ListDelete) Section() Section      { return p.Target }
func (BioDelete) Operation() Operation     { return OpDelete }
func (BioDelete) Section() Section         { return SectionBio }
func (ContactDelete) Operation() Operation { return OpDelete }
func (ContactDelete) Section() Section     { return SectionContact }

// Apply returns a new document with p applied to current. current is never
// modified: either a complete result is returned or an error.
func Apply(current Document, p Patch) (Document, error) {
	base := current
	if _, ok := p.(Replace); ok {
		base = nil
	}
	out, err := clone(base)
	if err != nil {
		return nil, err
	}
	if err := p.apply(out); err != nil {
		return nil, err
	}
	return out, nil
}

// clone deep-copies a decoded document so patches can edit it freely.
func clone(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	v, err := copystructure.Copy(doc)
	if err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	out, ok := v.(Document)
	if !ok {
		return nil, fmt.Errorf("copy document: unexpected %T", v)
	}
	return out, nil
}

func (r Replace) apply(doc Document) error {
	content, err := clone(r.Content)
	if err != nil {
		return err
	}
	for k, v := range content {
		doc[k] = v
	}
	return nil
}

func (p BioAppend) apply(doc Document) error {
	bio, err := block(doc, SectionBio)
	if err != nil {
		return err
	}
	for _, key := range bioListFields {
		add, ok := p.Lists[key]
		if !ok {
			continue
		}
		existing, err := list(bio, "bio", key)
		if err != nil {
			return err
		}
		bio[key] = concat(existing, add)
	}
	for _, key := range bioScalarFields {
		if s, ok := p.Scalars[key]; ok {
			bio[key] = s
		}
	}
	return nil
}

func (p ListAppend) apply(doc Document) error {
	b, err := block(doc, p.Target)
	if err != nil {
		return err
	}
	if p.Intro != nil {
		b["intro"] = *p.Intro
	}
	key := string(p.Target)
	existing, err := list(b, key, key)
	if err != nil {
		return err
	}
	b[key] = concat(existing, p.Items)
	return nil
}

func (p ContactAppend) apply(doc Document) error {
	contact, err := block(doc, SectionContact)
	if err != nil {
		return err
	}
	for k, v := range p.Fields {
		contact[k] = v
	}
	return nil
}

func (p ListDelete) apply(doc Document) error {
	b, err := block(doc, p.Target)
	if err != nil {
		return err
	}
	key := string(p.Target)
	existing, err := list(b, key, key)
	if err != nil {
		return err
	}
	targets := make(map[string]bool, len(p.Names))
	for _, n := range p.Names {
		targets[n] = true
	}
	kept := make([]any, 0, len(existing))
	for _, item := range existing {
		if entry, ok := item.(map[string]any); ok {
			if name, ok := entry["name"].(string); ok && targets[name] {
				continue
			}
		}
		kept = append(kept, item)
	}
	b[key] = kept
	return nil
}

func (p BioDelete) apply(doc Document) error {
	bio, err := block(doc, SectionBio)
	if err != nil {
		return err
	}
	for _, key := range bioListFields {
		drop, ok := p.Remove[key]
		if !ok {
			continue
		}
		existing, err := list(bio, "bio", key)
		if err != nil {
			return err
		}
		targets := make(map[string]bool, len(drop))
		for _, s := range drop {
			targets[s] = true
		}
		kept := make([]any, 0, len(existing))
		for _, item := range existing {
			if s, ok := item.(string); ok && targets[s] {
				continue
			}
			kept = append(kept, item)
		}
		bio[key] = kept
	}
	return nil
}

func (p ContactDelete) apply(doc Document) error {
	contact, err := block(doc, SectionContact)
	if err != nil {
		return err
	}
	for _, k := range p.Keys {
		contact[k] = ""
	}
	return nil
}

// block returns the section object of doc, creating it when absent.
func block(doc Document, section Section) (map[string]any, error) {
	v, ok := doc[string(section)]
	if !ok || v == nil {
		b := map[string]any{}
		doc[string(section)] = b
		return b, nil
	}
	b, ok := v.(map[string]any)
	if !ok {
		return nil, invalid("existing '%s' is not an object", section)
	}
	return b, nil
}

// list returns b[key] as an array; a missing key is an empty array.
func list(b map[string]any, section, key string) ([]any, error) {
	v, ok := b[key]
	if !ok || v == nil {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, invalid("existing '%s.%s' is not an array", section, key)
	}
	return l, nil
}

func concat(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
