package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siteJSON = `{
	"bio": {
		"name": "Jordan",
		"title": "Consultant",
		"summary": ["one", "two", "three"],
		"highlights": ["h1"]
	},
	"services": {"intro": "help", "services": [{"name": "A"}, {"name": "B"}, {"description": "unnamed"}]},
	"projects": {"projects": [{"name": "P1"}]},
	"contact": {"email": "me@example.com", "github": "gh", "linkedin": "li"}
}`

func site(t *testing.T) Document {
	t.Helper()
	var d Document
	require.NoError(t, json.Unmarshal([]byte(siteJSON), &d))
	return d
}

func mustParse(t *testing.T, payload string) *Payload {
	t.Helper()
	p, err := ParseJSON([]byte(payload))
	require.NoError(t, err)
	return p
}

func apply(t *testing.T, doc Document, payload string) Document {
	t.Helper()
	out, err := Apply(doc, mustParse(t, payload).Patch)
	require.NoError(t, err)
	return out
}

func section(d Document, name string) map[string]any {
	return d[name].(map[string]any)
}

func TestParseEnvelope(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		msg     string
	}{
		{"not json", `{`, "not valid JSON"},
		{"not object", `[1,2]`, "payload must be an object"},
		{"extra keys", `{"file":"site.json","operation":"replace","content":{},"zeta":1,"alpha":2}`, "unexpected payload keys: [alpha zeta]"},
		{"wrong file", `{"file":"other.json","operation":"replace","content":{}}`, "unsupported file"},
		{"missing file", `{"operation":"replace","content":{}}`, "unsupported file"},
		{"bad operation", `{"file":"site.json","operation":"merge","content":{}}`, "invalid operation"},
		{"content not object", `{"file":"site.json","operation":"replace","content":[]}`, "content must be an object"},
		{"unknown section", `{"file":"site.json","operation":"append","content":{"section":"footer","data":{}}}`, "append requires 'section'"},
		{"missing data", `{"file":"site.json","operation":"delete","content":{"section":"bio"}}`, "delete requires 'data' object"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tc.payload))
			require.ErrorIs(t, err, ErrInvalidPatch)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestDecodeSingleValue(t *testing.T) {
	v, err := Decode([]byte(`{"n": 10.50} ` + "\n"))
	require.NoError(t, err)
	require.Equal(t, json.Number("10.50"), v.(map[string]any)["n"])

	for _, data := range []string{`{"a":1}{"b":2}`, `{"a":1} garbage`, `[] []`} {
		_, err := Decode([]byte(data))
		require.ErrorIs(t, err, ErrTrailingData, data)
	}
	_, err = Decode([]byte(``))
	require.Error(t, err)
}

func TestParseJSONRejectsTrailingData(t *testing.T) {
	_, err := ParseJSON([]byte(`{"file":"site.json","operation":"replace","content":{}} {"x":1}`))
	require.ErrorIs(t, err, ErrInvalidPatch)
	require.Contains(t, err.Error(), "not valid JSON")
}

func TestParseJSONUnwrapsPayload(t *testing.T) {
	p := mustParse(t, `{"payload":{"file":"site.json","operation":"append","content":{"section":"contact","data":{"email":"e"}}}}`)
	require.Equal(t, OpAppend, p.Operation)
	require.Equal(t, SectionContact, p.Patch.Section())
}

func TestUnwrap(t *testing.T) {
	inner := map[string]any{"file": "site.json"}
	require.Equal(t, inner, Unwrap(map[string]any{"payload": inner}))

	both := map[string]any{"payload": inner, "file": "site.json"}
	require.Equal(t, both, Unwrap(both))

	notObj := map[string]any{"payload": "x"}
	require.Equal(t, notObj, Unwrap(notObj))
	require.Equal(t, 3, Unwrap(3))
}

func TestParseBuildsVariant(t *testing.T) {
	p := mustParse(t, `{"file":"site.json","operation":"delete","content":{"section":"projects","data":{"names":["P1"]}}}`)
	require.Equal(t, OpDelete, p.Operation)
	ld, ok := p.Patch.(ListDelete)
	require.True(t, ok)
	require.Equal(t, SectionProjects, ld.Section())
	require.Equal(t, SectionProjects, ld.Target)
	require.Equal(t, []string{"P1"}, ld.Names)

	la, ok := mustParse(t, `{"file":"site.json","operation":"append","content":{"section":"services","data":{"services":[]}}}`).Patch.(ListAppend)
	require.True(t, ok)
	require.Equal(t, SectionServices, la.Section())
}

func TestReplaceRoundTrip(t *testing.T) {
	current := site(t)
	replacement := `{"bio":{"name":"N","title":"T","summary":[]},"services":{"services":[]},"projects":{"projects":[]},"contact":{}}`
	out := apply(t, current, `{"file":"site.json","operation":"replace","content":`+replacement+`}`)

	var want Document
	require.NoError(t, json.Unmarshal([]byte(replacement), &want))
	require.Equal(t, want, out)
	require.Equal(t, site(t), current, "current document must be untouched")
}

func TestAppendBio(t *testing.T) {
	current := site(t)
	out := apply(t, current, `{"file":"site.json","operation":"append","content":{"section":"bio","data":{
		"summary":["four","one"],"highlights":["h2"],"title":"Principal","location":"Lisbon","name":42}}}`)

	bio := section(out, "bio")
	assert.Equal(t, []any{"one", "two", "three", "four", "one"}, bio["summary"])
	assert.Equal(t, []any{"h1", "h2"}, bio["highlights"])
	assert.Equal(t, "Principal", bio["title"])
	assert.Equal(t, "Lisbon", bio["location"])
	assert.Equal(t, "Jordan", bio["name"], "non-string scalar is ignored")

	assert.Equal(t, []any{"one", "two", "three"}, section(current, "bio")["summary"])
}

func TestAppendBioRequiresArrays(t *testing.T) {
	_, err := ParseJSON([]byte(`{"file":"site.json","operation":"append","content":{"section":"bio","data":{"summary":"x"}}}`))
	require.ErrorIs(t, err, ErrInvalidPatch)
	require.Contains(t, err.Error(), "'summary' as array")
}

func TestAppendListMonotonic(t *testing.T) {
	current := site(t)
	existing := section(current, "services")["services"].([]any)
	out := apply(t, current, `{"file":"site.json","operation":"append","content":{"section":"services","data":{
		"intro":"new intro","services":[{"name":"C"},{"name":"A"}]}}}`)

	got := section(out, "services")["services"].([]any)
	require.Len(t, got, len(existing)+2)
	require.Equal(t, existing, got[:len(existing)])
	require.Equal(t, map[string]any{"name": "A"}, got[len(got)-1], "duplicates are allowed")
	require.Equal(t, "new intro", section(out, "services")["intro"])
}

func TestAppendListValidation(t *testing.T) {
	_, err := ParseJSON([]byte(`{"file":"site.json","operation":"append","content":{"section":"projects","data":{"intro":"x"}}}`))
	require.ErrorIs(t, err, ErrInvalidPatch)
	require.Contains(t, err.Error(), "requires 'projects' array")

	_, err = ParseJSON([]byte(`{"file":"site.json","operation":"append","content":{"section":"projects","data":{"projects":{"name":"x"}}}}`))
	require.ErrorIs(t, err, ErrInvalidPatch)
	require.Contains(t, err.Error(), "must be an array")
}

func TestAppendContactPartialMerge(t *testing.T) {
	out := apply(t, site(t), `{"file":"site.json","operation":"append","content":{"section":"contact","data":{"email":"new@example.com","calendly":"cal"}}}`)
	assert.Equal(t, map[string]any{
		"email":    "new@example.com",
		"github":   "gh",
		"linkedin": "li",
		"calendly": "cal",
	}, section(out, "contact"))

	_, err := ParseJSON([]byte(`{"file":"site.json","operation":"append","content":{"section":"contact","data":{"email":1}}}`))
	require.ErrorIs(t, err, ErrInvalidPatch)
}

func TestDeleteListByName(t *testing.T) {
	current := site(t)

	out := apply(t, current, `{"file":"site.json","operation":"delete","content":{"section":"services","data":{"name":"A"}}}`)
	require.Equal(t, []any{map[string]any{"name": "B"}, map[string]any{"description": "unnamed"}}, section(out, "services")["services"])

	out = apply(t, current, `{"file":"site.json","operation":"delete","content":{"section":"services","data":{"names":["A","B","Z"]}}}`)
	require.Equal(t, []any{map[string]any{"description": "unnamed"}}, section(out, "services")["services"])
}

func TestDeleteListIdempotent(t *testing.T) {
	current := site(t)
	out := apply(t, current, `{"file":"site.json","operation":"delete","content":{"section":"projects","data":{"name":"missing"}}}`)
	require.Equal(t, section(current, "projects")["projects"], section(out, "projects")["projects"])

	again := apply(t, out, `{"file":"site.json","operation":"delete","content":{"section":"projects","data":{"name":"missing"}}}`)
	require.Equal(t, out, again)
}

func TestDeleteListRequiresTarget(t *testing.T) {
	for _, data := range []string{`{}`, `{"name":5}`, `{"names":["a",1]}`, `{"names":"a"}`} {
		_, err := ParseJSON([]byte(`{"file":"site.json","operation":"delete","content":{"section":"services","data":` + data + `}}`))
		require.ErrorIs(t, err, ErrInvalidPatch, data)
		require.Contains(t, err.Error(), "data.name (string) or data.names (string[])")
	}
}

func TestDeleteBioExactMatches(t *testing.T) {
	out := apply(t, site(t), `{"file":"site.json","operation":"delete","content":{"section":"bio","data":{"summary":["two","TWO","absent"]}}}`)
	bio := section(out, "bio")
	require.Equal(t, []any{"one", "three"}, bio["summary"])
	require.Equal(t, []any{"h1"}, bio["highlights"])

	_, err := ParseJSON([]byte(`{"file":"site.json","operation":"delete","content":{"section":"bio","data":{"highlights":[1]}}}`))
	require.ErrorIs(t, err, ErrInvalidPatch)
}

func TestDeleteContactBlanksKeys(t *testing.T) {
	out := apply(t, site(t), `{"file":"site.json","operation":"delete","content":{"section":"contact","data":{"email":null,"github":123}}}`)
	contact := section(out, "contact")
	require.Equal(t, "", contact["email"])
	require.Equal(t, "", contact["github"])
	require.Equal(t, "li", contact["linkedin"])
}

func TestApplyRejectsMalformedCurrent(t *testing.T) {
	current := Document{"services": "not an object"}
	p := mustParse(t, `{"file":"site.json","operation":"append","content":{"section":"services","data":{"services":[]}}}`)
	_, err := Apply(current, p.Patch)
	require.ErrorIs(t, err, ErrInvalidPatch)
	require.Equal(t, Document{"services": "not an object"}, current)
}

func TestExampleScenario(t *testing.T) {
	doc := Document{
		"bio":      map[string]any{},
		"services": map[string]any{"services": []any{map[string]any{"name": "A"}}},
		"projects": map[string]any{"projects": []any{}},
		"contact":  map[string]any{},
	}
	doc = apply(t, doc, `{"file":"site.json","operation":"append","content":{"section":"services","data":{"services":[{"name":"B"}]}}}`)
	require.Equal(t, []any{map[string]any{"name": "A"}, map[string]any{"name": "B"}}, section(doc, "services")["services"])

	doc = apply(t, doc, `{"file":"site.json","operation":"delete","content":{"section":"services","data":{"names":["A","B"]}}}`)
	require.Equal(t, []any{}, section(doc, "services")["services"])
}
