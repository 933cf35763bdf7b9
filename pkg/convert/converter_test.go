package convert

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/coolbeans/indigo/pkg/citation"
	"github.com/coolbeans/indigo/pkg/config"
)

// convertBody converts an HTML body fragment and renders the output body's
// children.
func convertBody(t *testing.T, body string, decoder *citation.Decoder) (string, *Result) {
	t.Helper()
	source, err := html.Parse(strings.NewReader("<html><head><title>Test Book</title></head><body>" + body + "</body></html>"))
	require.NoError(t, err)

	result, err := New(config.Default(), decoder, zaptest.NewLogger(t)).Convert(source)
	require.NoError(t, err)
	return renderChildren(t, result.Body), result
}

func renderChildren(t *testing.T, node *html.Node) string {
	t.Helper()
	var buf bytes.Buffer
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		require.NoError(t, html.Render(&buf, child))
	}
	return buf.String()
}

func listParagraph(class string, level int, glyph, text string) string {
	return "<p class=" + class + " style='margin-left:.5in;mso-list:l0 level" + string(rune('0'+level)) + " lfo1'>" +
		"<span style='mso-list:Ignore'>" + glyph + "<span style='font:7.0pt \"Times New Roman\"'>&nbsp;&nbsp; </span></span>" +
		text + "</p>\n"
}

func TestConvert_Paragraphs(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "plain paragraph with transparent span",
			source: `<p class=MsoNormal>Hello <span style='mso-bidi-font-weight:bold'>world</span></p>`,
			want:   `<p>Hello world</p>`,
		},
		{
			name:   "indented paragraph becomes blockquote",
			source: `<p class=MsoNormal style='margin-left:.5in'>Quoted</p>`,
			want:   `<blockquote>Quoted</blockquote>`,
		},
		{
			name:   "negative indent stays a paragraph",
			source: `<p class=MsoNormal style='margin-left:-.25in'>Hanging</p>`,
			want:   `<p>Hanging</p>`,
		},
		{
			name:   "centered with line height is a title",
			source: `<p class=MsoNormal align=center style='text-align:center;line-height:150%'>The Indigo Book</p>`,
			want:   `<p class="title">The Indigo Book</p>`,
		},
		{
			name:   "centered without line height is a subtitle",
			source: `<p class=MsoNormal align=center style='text-align:center'>A Manual of Legal Citation</p>`,
			want:   `<p class="subtitle">A Manual of Legal Citation</p>`,
		},
		{
			name:   "example label keeps with next",
			source: `<p class=MsoNormal style='page-break-after:avoid'>Example:</p>`,
			want:   `<p class="example keep-with-next">Example:</p>`,
		},
		{
			name:   "unknown wrappers are transparent and scripts dropped",
			source: `<div class=WordSection1><p class=MsoNormal>Inside</p></div><script>alert(1)</script>`,
			want:   `<p>Inside</p>`,
		},
		{
			name:   "copied inline formatting",
			source: `<p class=MsoNormal><b>Bold</b><i>italic</i><sup>1</sup></p>`,
			want:   `<p><b>Bold</b><i>italic</i><sup>1</sup></p>`,
		},
		{
			name:   "non-breaking spaces collapse",
			source: `<p class=MsoNormal>a&nbsp;&nbsp; b</p>`,
			want:   `<p>a b</p>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := convertBody(t, tt.source, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvert_Lists(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		want      string
		wantLists int
	}{
		{
			name: "two items at one level",
			source: listParagraph("MsoListParagraphCxSpFirst", 1, "1.", "One") +
				listParagraph("MsoListParagraphCxSpLast", 1, "2.", "Two"),
			want:      `<ol><li>One</li><li>Two</li></ol>`,
			wantLists: 1,
		},
		{
			name: "nested run returns to outer level",
			source: listParagraph("MsoListParagraphCxSpFirst", 1, "1.", "A") +
				listParagraph("MsoListParagraphCxSpMiddle", 2, "·", "B") +
				listParagraph("MsoListParagraphCxSpLast", 1, "2.", "C"),
			want:      `<ol><li>A<ul><li>B</li></ul></li><li>C</li></ol>`,
			wantLists: 2,
		},
		{
			name: "three middle items",
			source: listParagraph("MsoListParagraphCxSpFirst", 1, "·", "A") +
				listParagraph("MsoListParagraphCxSpMiddle", 1, "·", "B") +
				listParagraph("MsoListParagraphCxSpLast", 1, "·", "C"),
			want:      `<ul><li>A</li><li>B</li><li>C</li></ul>`,
			wantLists: 1,
		},
		{
			name:      "solo item",
			source:    listParagraph("MsoListParagraph", 1, "a.", "Only"),
			want:      `<ol><li>Only</li></ol>`,
			wantLists: 1,
		},
		{
			name: "solo item after a nested run stands alone",
			source: listParagraph("MsoListParagraphCxSpFirst", 1, "1.", "A") +
				listParagraph("MsoListParagraphCxSpLast", 2, "a.", "B") +
				listParagraph("MsoListParagraph", 1, "1.", "Solo") +
				listParagraph("MsoNormal", 1, "1.", "X") +
				`<p class=MsoNormal>After</p>`,
			want:      `<ol><li>A<ol><li>B</li></ol></li></ol><ol><li>Solo</li></ol><ol><li>X</li></ol><p>After</p>`,
			wantLists: 4,
		},
		{
			name: "plain paragraph closes an open run",
			source: listParagraph("MsoListParagraphCxSpFirst", 1, "1.", "Open") +
				`<p class=MsoNormal>After</p>`,
			want:      `<ol><li>Open</li></ol><p>After</p>`,
			wantLists: 1,
		},
		{
			name: "plain paragraph with a level starts a run implicitly",
			source: listParagraph("MsoNormal", 1, "1.", "First") +
				listParagraph("MsoNormal", 1, "2.", "Second"),
			want:      `<ol><li>First</li><li>Second</li></ol>`,
			wantLists: 1,
		},
		{
			name: "heading closes an open run",
			source: listParagraph("MsoListParagraphCxSpFirst", 1, "1.", "Item") +
				`<h2>B. Next</h2>`,
			want:      `<ol><li>Item</li></ol><h2 id="b">B. Next</h2>`,
			wantLists: 1,
		},
		{
			name:      "missing marker glyph defaults to unordered",
			source:    `<p class=MsoListParagraph style='mso-list:l0 level1 lfo1'>No glyph</p>`,
			want:      `<ul><li>No glyph</li></ul>`,
			wantLists: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, result := convertBody(t, tt.source, nil)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantLists, result.Stats.Lists)
		})
	}
}

func TestConvert_ListInsideCellIsScoped(t *testing.T) {
	source := `<table><tr><td>` +
		listParagraph("MsoListParagraphCxSpFirst", 1, "1.", "Cell item") +
		`</td></tr></table><p class=MsoNormal>After</p>`

	got, _ := convertBody(t, source, nil)
	assert.Equal(t, `<table><tbody><tr><td><ol><li>Cell item</li></ol></td></tr></tbody></table><p>After</p>`, got)
}

func TestConvert_ListInsideInlineMarkupIsScoped(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name: "bold wrapper",
			source: `<b>` + listParagraph("MsoListParagraphCxSpFirst", 1, "1.", "One") + `</b>` +
				listParagraph("MsoListParagraphCxSpLast", 1, "2.", "Two") +
				`<p class=MsoNormal>After</p>`,
			want: `<b><ol><li>One</li></ol></b><ol><li>Two</li></ol><p>After</p>`,
		},
		{
			name: "small caps wrapper holds the whole run",
			source: `<span style='font-variant:small-caps'>` +
				listParagraph("MsoListParagraphCxSpFirst", 1, "1.", "One") +
				listParagraph("MsoListParagraphCxSpMiddle", 1, "2.", "Two") +
				listParagraph("MsoListParagraphCxSpLast", 1, "3.", "Three") +
				`</span>`,
			want: `<span class="small-caps"><ol><li>One</li><li>Two</li><li>Three</li></ol></span>`,
		},
		{
			name: "small caps wrapper around the first item only",
			source: `<span style='font-variant:small-caps'>` +
				listParagraph("MsoListParagraphCxSpFirst", 1, "1.", "One") + `</span>` +
				listParagraph("MsoListParagraphCxSpMiddle", 1, "2.", "Two") +
				listParagraph("MsoListParagraphCxSpLast", 1, "3.", "Three"),
			want: `<span class="small-caps"><ol><li>One</li></ol></span><ol><li>Two</li><li>Three</li></ol>`,
		},
		{
			name: "external link wrapper",
			source: `<a href="https://example.com">` + listParagraph("MsoListParagraphCxSpFirst", 1, "1.", "One") + `</a>` +
				listParagraph("MsoListParagraphCxSpLast", 1, "2.", "Two"),
			want: `<a href="https://example.com" target="_blank"><ol><li>One</li></ol></a><ol><li>Two</li></ol>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := convertBody(t, tt.source, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvert_Box(t *testing.T) {
	source := `<p class=IBBoxTitle>Tip</p>
<p class=IBBoxNote>First note</p>
<p class=IBBoxNote>Second note</p>
<p class=MsoNormal>Afterwards</p>`

	got, result := convertBody(t, source, nil)
	assert.Equal(t,
		`<div class="box"><div class="box-title">Tip</div><div class="box-note">First note</div><div class="box-note">Second note</div></div><p>Afterwards</p>`,
		got)
	assert.Equal(t, 1, result.Stats.Boxes)
}

func TestConvert_BoxTitleAlone(t *testing.T) {
	got, _ := convertBody(t, `<p class=IBBoxTitle><span style='font-size:9.0pt'>Lonely</span></p><p class=MsoNormal>Next</p>`, nil)
	assert.Equal(t, `<div class="box"><div class="box-title"><span style="font-size:9.0pt">Lonely</span></div></div><p>Next</p>`, got)
}

func TestConvert_BoxKeepsNestedSpanStyles(t *testing.T) {
	got, _ := convertBody(t, `<p class=IBBoxTitle><span style='font-size:9.0pt'><span style='color:red'>Nested</span></span></p>`, nil)
	assert.Equal(t, `<div class="box"><div class="box-title"><span style="font-size:9.0pt"><span style="color:red">Nested</span></span></div></div>`, got)
}

func TestConvert_NoteWithoutBox(t *testing.T) {
	source, err := html.Parse(strings.NewReader(`<body><p class=IBBoxNote>Orphan</p></body>`))
	require.NoError(t, err)

	_, err = New(config.Default(), nil, zaptest.NewLogger(t)).Convert(source)
	assert.ErrorIs(t, err, ErrNoOpenBox)
}

func TestConvert_CrossReferences(t *testing.T) {
	got, result := convertBody(t, `<p class=MsoNormal>See Rule 3.2 and Table 1.</p>`, nil)
	assert.Equal(t,
		`<p>See <a href="#r3-2" class="xref">Rule 3.2</a> and <a href="#t1" class="xref">Table 1</a>.</p>`,
		got)
	assert.Equal(t, 2, result.Stats.CrossReferences)
}

func TestConvert_Headings(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "code prefix",
			source: `<h1>R3.2 Subsequent References</h1>`,
			want:   `<h1 id="r3-2">R3.2 Subsequent References</h1>`,
		},
		{
			name:   "letter prefix without cross reference links",
			source: `<h2>A. Rule 1 basics</h2>`,
			want:   `<h2 id="a">A. Rule 1 basics</h2>`,
		},
		{
			name:   "literal label",
			source: `<h1><a name="_Toc1"></a>Table of Contents</h1>`,
			want:   `<h1 id="table-of-contents">Table of Contents</h1>`,
		},
		{
			name:   "unrecognized heading has no id",
			source: `<h3>Miscellany</h3>`,
			want:   `<h3>Miscellany</h3>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := convertBody(t, tt.source, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvert_Anchors(t *testing.T) {
	source := `<p class=MsoNormal><a href="#_Toc123">Jump</a><a href="https://example.com/a-b">https://example.com/a-b</a><a href="#r1">Rule 1</a></p>`

	got, _ := convertBody(t, source, nil)
	want := `<p>Jump` +
		`<a href="https://example.com/a-b" target="_blank">https://example` + zeroWidthSpace + `.com` + zeroWidthSpace + `/a` + zeroWidthSpace + `-b</a>` +
		`<a href="#r1">Rule 1</a></p>`
	assert.Equal(t, want, got)
}

func TestConvert_Spans(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "small caps",
			source: `<p class=MsoNormal><span style='font-variant:small-caps'>Bluebook</span></p>`,
			want:   `<p><span class="small-caps">Bluebook</span></p>`,
		},
		{
			name:   "wide space",
			source: `<p class=MsoNormal>a<span style='mso-tab-count:1'>&nbsp;&nbsp; </span>b</p>`,
			want:   `<p>a<span class="wide-space"> </span>b</p>`,
		},
		{
			name:   "decoded cite span survives a second pass",
			source: `<p class=MsoNormal><span class=cite data-info="see-X1-0-0">Cited</span></p>`,
			want:   `<p><span class="cite" data-info="see-X1-0-0">Cited</span></p>`,
		},
		{
			name:   "styled span outside a box is transparent",
			source: `<p class=MsoNormal><span style='font-size:9.0pt'>Plain</span></p>`,
			want:   `<p>Plain</p>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := convertBody(t, tt.source, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvert_Cells(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "shaded layout cell",
			source: `<table><tr><td colspan=2 style='background:#D9D9D9;padding:0in'><p class=MsoNormal>Note text</p></td></tr></table>`,
			want:   `<table><tbody><tr><td colspan="2" class="multicol shaded"><p>Note text</p></td></tr></tbody></table>`,
		},
		{
			name:   "bold header cell",
			source: `<table><tr><td colspan=2><p class=MsoNormal><b>Header</b></p></td></tr></table>`,
			want:   `<table><tbody><tr><td colspan="2"><p><b>Header</b></p></td></tr></tbody></table>`,
		},
		{
			name:   "row span",
			source: `<table><tr><td rowspan=3><p class=MsoNormal>Tall</p></td></tr></table>`,
			want:   `<table><tbody><tr><td rowspan="3"><p>Tall</p></td></tr></tbody></table>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := convertBody(t, tt.source, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

const fieldPayload = `{"citationID":"c1","properties":{"plainCitation":"Marbury v. Madison, 5 U.S. 137 (1803).","noteIndex":0},"citationItems":[{"id":1,"uris":["http://zotero.org/groups/1/items/ABCD1234"],"itemData":{"id":1,"type":"legal_case","jurisdiction":"us"},"prefix":"see","locator":"177"}]}`

func fieldBegin(payload string) string {
	escaped := strings.ReplaceAll(payload, `"`, "&quot;")
	return "<!--[if supportFields]><span style='mso-element:field-begin'></span> ADDIN ZOTERO_ITEM CSL_CITATION " + escaped + "<![endif]-->"
}

const fieldEnd = "<!--[if supportFields]><span style='mso-element:field-end'></span><![endif]-->"

func newTestDecoder(t *testing.T) (*citation.Decoder, string) {
	t.Helper()
	recordDir := filepath.Join(t.TempDir(), "items")
	store, err := citation.NewRecordStore(recordDir)
	require.NoError(t, err)
	return citation.NewDecoder(nil, store, zaptest.NewLogger(t)), recordDir
}

func TestConvert_CitationField(t *testing.T) {
	decoder, recordDir := newTestDecoder(t)
	source := `<p class=MsoNormal>Text ` + fieldBegin(fieldPayload) + `<span>Rendered by Word</span>` + fieldEnd + ` after</p>`

	got, result := convertBody(t, source, decoder)
	assert.Equal(t,
		`<p>Text <span class="cite" data-info="see-ABCD1234-0-0-177">Marbury v. Madison, 5 U.S. 137 (1803).</span> after</p>`,
		got)
	assert.Equal(t, 1, result.Stats.Citations)
	assert.FileExists(t, filepath.Join(recordDir, "ABCD1234.json"))
}

func TestConvert_CitationFieldWithoutDecoder(t *testing.T) {
	source := `<p class=MsoNormal>Text ` + fieldBegin(fieldPayload) + `<span>Rendered by Word</span>` + fieldEnd + `</p>`

	got, _ := convertBody(t, source, nil)
	assert.Equal(t, `<p>Text Rendered by Word</p>`, got)
}

func TestConvert_UnclosedCitationField(t *testing.T) {
	decoder, _ := newTestDecoder(t)
	source := `<p class=MsoNormal>A` + fieldBegin(fieldPayload) + `hidden</p><p class=MsoNormal>B</p>`

	got, _ := convertBody(t, source, decoder)
	assert.Equal(t,
		`<p>A<span class="cite" data-info="see-ABCD1234-0-0-177">Marbury v. Madison, 5 U.S. 137 (1803).</span></p><p>B</p>`,
		got)
}

func TestConvert_MalformedCitationField(t *testing.T) {
	decoder, _ := newTestDecoder(t)
	source, err := html.Parse(strings.NewReader(`<body><p class=MsoNormal>` + fieldBegin(`{"citationID": `) + `</p></body>`))
	require.NoError(t, err)

	_, err = New(config.Default(), decoder, zaptest.NewLogger(t)).Convert(source)
	assert.ErrorIs(t, err, citation.ErrMalformedField)
}

func TestConvert_RecordsAreNotOverwritten(t *testing.T) {
	decoder, recordDir := newTestDecoder(t)
	recordPath := filepath.Join(recordDir, "ABCD1234.json")
	require.NoError(t, os.WriteFile(recordPath, []byte(`{"kept":true}`), 0o644))

	convertBody(t, `<p class=MsoNormal>`+fieldBegin(fieldPayload)+fieldEnd+`</p>`, decoder)

	data, err := os.ReadFile(recordPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kept":true}`, string(data))
}

func TestConvert_DocumentSkeleton(t *testing.T) {
	_, result := convertBody(t, `<p class=MsoNormal>x</p>`, nil)

	var buf bytes.Buffer
	require.NoError(t, html.Render(&buf, result.Document))
	assert.Equal(t,
		`<html><head><meta charset="utf-8"/><title>Test Book</title></head><body><p>x</p></body></html>`,
		buf.String())
	assert.Equal(t, 1, result.Stats.Paragraphs)
}

func TestConvert_NilSource(t *testing.T) {
	_, err := New(config.Default(), nil, nil).Convert(nil)
	assert.Error(t, err)
}
