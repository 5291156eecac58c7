package patch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/riaaa16/ai-consultant/internal/pathguard"
)

// ErrInvalidPatch is returned for any malformed payload or section data.
var ErrInvalidPatch = errors.New("invalid patch")

type Operation string

const (
	OpReplace Operation = "replace"
	OpAppend  Operation = "append"
	OpDelete  Operation = "delete"
)

type Section string

const (
	SectionBio      Section = "bio"
	SectionServices Section = "services"
	SectionProjects Section = "projects"
	SectionContact  Section = "contact"
)

// Document is a decoded content document.
type Document = map[string]any

// Payload is a validated update request.
type Payload struct {
	File      string
	Operation Operation
	Patch     Patch
}

var payloadKeys = map[string]bool{"file": true, "operation": true, "content": true}

// envelope carries the scalar payload fields through the validator.
type envelope struct {
	File      string `validate:"required,eq=site.json"`
	Operation string `validate:"required,oneof=replace append delete"`
}

var validate = validator.New()

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPatch, fmt.Sprintf(format, args...))
}

// ErrTrailingData is returned by Decode when bytes follow the first value.
var ErrTrailingData = errors.New("unexpected data after top-level value")

// Decode parses data as exactly one JSON value. Numbers are kept as
// json.Number so they round-trip unchanged.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	return v, nil
}

// ParseJSON decodes data as a single payload object. A lone
// {"payload": {...}} wrapper is removed first.
func ParseJSON(data []byte) (*Payload, error) {
	raw, err := Decode(data)
	if err != nil {
		return nil, invalid("payload is not valid JSON: %v", err)
	}
	obj, ok := Unwrap(raw).(map[string]any)
	if !ok {
		return nil, invalid("payload must be an object")
	}
	return Parse(obj)
}

// Unwrap returns the inner object of {"payload": {...}}; any other value is
// returned unchanged.
func Unwrap(v any) any {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) != 1 {
		return v
	}
	if inner, ok := obj["payload"].(map[string]any); ok {
		return inner
	}
	return v
}

// Parse validates the payload envelope and builds the patch variant for its
// operation and section.
func Parse(raw map[string]any) (*Payload, error) {
	if raw == nil {
		return nil, invalid("payload must be an object")
	}
	var extra []string
	for k := range raw {
		if !payloadKeys[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, invalid("unexpected payload keys: %v", extra)
	}

	file, _ := raw["file"].(string)
	op, _ := raw["operation"].(string)
	if err := validate.Struct(envelope{File: file, Operation: op}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Field() == "File" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPatch, pathguard.ErrUnsupportedFile)
		}
		return nil, invalid("invalid operation %q (replace|append|delete)", op)
	}
	content, ok := raw["content"].(map[string]any)
	if !ok {
		return nil, invalid("content must be an object")
	}

	p, err := build(Operation(op), content)
	if err != nil {
		return nil, err
	}
	return &Payload{File: file, Operation: Operation(op), Patch: p}, nil
}

func build(op Operation, content map[string]any) (Patch, error) {
	if op == OpReplace {
		return Replace{Content: content}, nil
	}

	section, _ := content["section"].(string)
	switch Section(section) {
	case SectionBio, SectionServices, SectionProjects, SectionContact:
	default:
		return nil, invalid("%s requires 'section' (bio|services|projects|contact)", op)
	}
	data, ok := content["data"].(map[string]any)
	if !ok {
		return nil, invalid("%s requires 'data' object", op)
	}

	switch op {
	case OpAppend:
		return buildAppend(Section(section), data)
	case OpDelete:
		return buildDelete(Section(section), data)
	}
	return nil, invalid("unsupported operation %q", op)
}

func buildAppend(section Section, data map[string]any) (Patch, error) {
	switch section {
	case SectionBio:
		p := BioAppend{Lists: map[string][]any{}, Scalars: map[string]string{}}
		for _, key := range bioListFields {
			v, present := data[key]
			if !present {
				continue
			}
			list, ok := v.([]any)
			if !ok {
				return nil, invalid("bio append requires '%s' as array", key)
			}
			p.Lists[key] = list
		}
		for _, key := range bioScalarFields {
			if s, ok := data[key].(string); ok {
				p.Scalars[key] = s
			}
		}
		return p, nil

	case SectionServices, SectionProjects:
		p := ListAppend{Target: section}
		if s, ok := data["intro"].(string); ok {
			p.Intro = &s
		}
		key := string(section)
		v, present := data[key]
		if !present {
			return nil, invalid("%s append requires '%s' array in data", section, key)
		}
		items, ok := v.([]any)
		if !ok {
			return nil, invalid("'%s' must be an array", key)
		}
		p.Items = items
		return p, nil

	case SectionContact:
		p := ContactAppend{Fields: make(map[string]string, len(data))}
		for k, v := range data {
			s, ok := v.(string)
			if !ok {
				return nil, invalid("contact fields must be strings (%s)", k)
			}
			p.Fields[k] = s
		}
		return p, nil
	}
	return nil, invalid("append not supported for section %q", section)
}

func buildDelete(section Section, data map[string]any) (Patch, error) {
	switch section {
	case SectionServices, SectionProjects:
		if name, ok := data["name"].(string); ok {
			return ListDelete{Target: section, Names: []string{name}}, nil
		}
		if names, ok := stringList(data["names"]); ok {
			return ListDelete{Target: section, Names: names}, nil
		}
		return nil, invalid("delete requires data.name (string) or data.names (string[])")

	case SectionBio:
		p := BioDelete{Remove: map[string][]string{}}
		for _, key := range bioListFields {
			v, present := data[key]
			if !present {
				continue
			}
			list, ok := stringList(v)
			if !ok {
				return nil, invalid("bio delete requires data.%s as string[]", key)
			}
			p.Remove[key] = list
		}
		return p, nil

	case SectionContact:
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return ContactDelete{Keys: keys}, nil
	}
	return nil, invalid("delete not supported for section %q", section)
}

// stringList accepts a decoded JSON array whose every element is a string.
func stringList(v any) ([]string, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
