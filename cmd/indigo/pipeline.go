package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/coolbeans/indigo/pkg/assemble"
	"github.com/coolbeans/indigo/pkg/citation"
	"github.com/coolbeans/indigo/pkg/config"
	"github.com/coolbeans/indigo/pkg/convert"
	"github.com/coolbeans/indigo/pkg/finalize"
	"github.com/coolbeans/indigo/pkg/jurisdiction"
	"github.com/coolbeans/indigo/pkg/loader"
)

// pipeline wires loader, converter and finalizer for one run.
type pipeline struct {
	cfg       config.Config
	logger    *zap.Logger
	loader    *loader.Loader
	decoder   *citation.Decoder
	converter *convert.Converter
}

func newPipeline(cfg config.Config, logger *zap.Logger) (*pipeline, error) {
	var jurisdictions *jurisdiction.Map
	if cfg.JurisdictionsFile != "" {
		loaded, err := jurisdiction.LoadFile(cfg.JurisdictionsFile)
		if err != nil {
			return nil, err
		}
		jurisdictions = loaded
		logger.Info("loaded jurisdictions",
			zap.String("path", cfg.JurisdictionsFile),
			zap.Int("count", jurisdictions.Len()),
		)
	}

	store, err := citation.NewRecordStore(cfg.AssetsPath())
	if err != nil {
		return nil, err
	}
	decoder := citation.NewDecoder(jurisdictions, store, logger.Named("citation"))

	return &pipeline{
		cfg:       cfg,
		logger:    logger,
		loader:    loader.New(cfg.EmptyMarkup),
		decoder:   decoder,
		converter: convert.New(cfg, decoder, logger.Named("convert")),
	}, nil
}

// convertFile loads and converts one source document.
func (p *pipeline) convertFile(inputPath string) (*convert.Result, error) {
	p.logger.Info("processing", zap.String("input", inputPath))

	source, err := p.loader.Load(inputPath)
	if err != nil {
		return nil, err
	}
	result, err := p.converter.Convert(source)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s: %w", inputPath, err)
	}
	return result, nil
}

// writeFile converts one document to its mirrored output path.
func (p *pipeline) writeFile(inputPath string) (string, error) {
	result, err := p.convertFile(inputPath)
	if err != nil {
		return "", err
	}

	outputPath := p.cfg.OutputPath(inputPath)
	if err := finalize.WriteFile(outputPath, result.Document); err != nil {
		return "", err
	}
	p.logger.Info("wrote output",
		zap.String("output", outputPath),
		zap.Int("records_written", p.decoder.RecordsWritten()),
	)
	return outputPath, nil
}

// assembleAll converts every configured document into one combined file.
func (p *pipeline) assembleAll() (string, error) {
	if len(p.cfg.Documents) == 0 {
		return "", fmt.Errorf("no documents configured to assemble")
	}

	assembler := assemble.New(p.logger.Named("assemble"))
	for _, document := range p.cfg.Documents {
		result, err := p.convertFile(p.cfg.SourcePath(document.Filename))
		if err != nil {
			return "", err
		}
		if err := assembler.Add(document.PageType, result.Document); err != nil {
			return "", err
		}
	}

	if p.cfg.CoverFile != "" {
		coverPath := filepath.Join(filepath.Dir(p.cfg.SourceDir), p.cfg.CoverFile)
		if err := p.addCover(assembler, coverPath); err != nil {
			return "", err
		}
	}

	outputPath := filepath.Join(p.cfg.OutputDir, p.cfg.Basename+".html")
	if err := finalize.WriteFile(outputPath, assembler.Document()); err != nil {
		return "", err
	}
	p.logger.Info("wrote combined output",
		zap.String("output", outputPath),
		zap.Int("documents", len(p.cfg.Documents)),
		zap.Int("pages", assembler.Pages()),
		zap.Int("fields_decoded", p.decoder.FieldsDecoded()),
		zap.Int("records_written", p.decoder.RecordsWritten()),
	)
	return outputPath, nil
}

// addCover uses the cover file when present; a missing cover is not an
// error.
func (p *pipeline) addCover(assembler *assemble.Assembler, coverPath string) error {
	cover, err := os.Open(coverPath)
	if os.IsNotExist(err) {
		p.logger.Info("no cover file", zap.String("path", coverPath))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cover %s: %w", coverPath, err)
	}
	defer cover.Close()
	return assembler.SetCover(cover)
}
