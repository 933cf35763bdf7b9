// Package config holds the conversion settings: the paragraph class names and
// inline-style markers the word processor uses, output locations, and the
// document list for multi-document assembly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSourceDir is where the "Save as Web Page" exports are read from.
const DefaultSourceDir = "doc-src/html"

// DefaultOutputDir is where converted documents are written.
const DefaultOutputDir = "docs/versions"

// DefaultAssetsDir is the static-assets subdirectory (relative to the output
// directory) holding one JSON record per citation item.
const DefaultAssetsDir = "static/data/items"

// DefaultShadedBackground is the inline background declaration Word emits
// for grey-shaded table cells.
const DefaultShadedBackground = "background:#D9D9D9"

// OutputDirEnv overrides Config.OutputDir when set.
const OutputDirEnv = "INDIGO_OUTPUT_DIR"

// Classes names the paragraph classes that carry structural meaning.
type Classes struct {
	BoxTitle   string `yaml:"box_title"`
	BoxNote    string `yaml:"box_note"`
	ListFirst  string `yaml:"list_first"`
	ListMiddle string `yaml:"list_middle"`
	ListLast   string `yaml:"list_last"`
	ListSolo   string `yaml:"list_solo"`

	// Plain lists classes of ordinary paragraphs that still take part in
	// list detection when they carry a nesting level.
	Plain []string `yaml:"plain"`

	// PlainPrefixes matches plain classes by prefix (e.g. "Body", "BodyText2").
	PlainPrefixes []string `yaml:"plain_prefixes"`
}

// Document is one conversion unit of a combined manuscript.
type Document struct {
	Filename string `yaml:"filename"`
	PageType string `yaml:"pagetype"`
}

// Config holds all conversion settings.
type Config struct {
	SourceDir         string `yaml:"source_dir"`
	OutputDir         string `yaml:"output_dir"`
	AssetsDir         string `yaml:"assets_dir"`
	JurisdictionsFile string `yaml:"jurisdictions_file"`

	Classes Classes `yaml:"classes"`

	// AnchorSkipPrefixes suppresses anchors whose href starts with any prefix.
	AnchorSkipPrefixes []string `yaml:"anchor_skip_prefixes"`

	// HeadingLabels are headings whose full text is used for the anchor id.
	HeadingLabels []string `yaml:"heading_labels"`

	ShadedBackground string `yaml:"shaded_background"`

	// EmptyMarkup is removed textually before parsing.
	EmptyMarkup []string `yaml:"empty_markup"`

	// Basename names the combined output of the assemble command.
	Basename  string     `yaml:"basename"`
	CoverFile string     `yaml:"cover_file"`
	Documents []Document `yaml:"documents"`
}

// Default returns a Config with the conventions of the Word exports this tool
// was tuned on.
func Default() Config {
	return Config{
		SourceDir: DefaultSourceDir,
		OutputDir: DefaultOutputDir,
		AssetsDir: DefaultAssetsDir,
		Classes: Classes{
			BoxTitle:      "IBBoxTitle",
			BoxNote:       "IBBoxNote",
			ListFirst:     "MsoListParagraphCxSpFirst",
			ListMiddle:    "MsoListParagraphCxSpMiddle",
			ListLast:      "MsoListParagraphCxSpLast",
			ListSolo:      "MsoListParagraph",
			Plain:         []string{"MsoNormal"},
			PlainPrefixes: []string{"Body"},
		},
		AnchorSkipPrefixes: []string{"#_Toc", "#_Hlk", "#_Ref", "#_GoBack"},
		HeadingLabels: []string{
			"Introduction",
			"Table of Contents",
			"Preface",
			"Acknowledgments",
			"Index",
		},
		ShadedBackground: DefaultShadedBackground,
		EmptyMarkup: []string{
			"<o:p></o:p>",
			"<span style='mso-spacerun:yes'></span>",
		},
		Basename:  "indigobook",
		CoverFile: "Cover-1.html",
	}
}

// Load reads a YAML config file on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if outputDir := os.Getenv(OutputDirEnv); outputDir != "" {
		cfg.OutputDir = outputDir
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the structural class names are set.
func (cfg Config) Validate() error {
	required := map[string]string{
		"classes.box_title":   cfg.Classes.BoxTitle,
		"classes.box_note":    cfg.Classes.BoxNote,
		"classes.list_first":  cfg.Classes.ListFirst,
		"classes.list_middle": cfg.Classes.ListMiddle,
		"classes.list_last":   cfg.Classes.ListLast,
		"classes.list_solo":   cfg.Classes.ListSolo,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config %s must not be empty", key)
		}
	}
	for _, document := range cfg.Documents {
		if document.Filename == "" {
			return fmt.Errorf("config documents entry has no filename")
		}
	}
	return nil
}

// IsPlainClass reports whether class names an ordinary paragraph that may
// still carry a list nesting level.
func (classes Classes) IsPlainClass(class string) bool {
	for _, plain := range classes.Plain {
		if class == plain {
			return true
		}
	}
	for _, prefix := range classes.PlainPrefixes {
		if prefix != "" && strings.HasPrefix(class, prefix) {
			return true
		}
	}
	return false
}

// SourcePath joins a filename onto the source directory.
func (cfg Config) SourcePath(filename string) string {
	return filepath.Join(cfg.SourceDir, filename)
}

// OutputPath maps an input filename to its converted output path, keeping
// the base name and forcing an .html extension.
func (cfg Config) OutputPath(inputPath string) string {
	base := filepath.Base(inputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base)) + ".html"
	return filepath.Join(cfg.OutputDir, base)
}

// AssetsPath is the directory citation records are written to.
func (cfg Config) AssetsPath() string {
	return filepath.Join(cfg.OutputDir, cfg.AssetsDir)
}
