package citation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/coolbeans/indigo/pkg/jurisdiction"
)

// jurisdictionField is the itemData key holding the colon-joined code.
const jurisdictionField = "jurisdiction"

// DecodedField is the result of decoding one citation field.
type DecodedField struct {
	// Key is the compact positional encoding of all items.
	Key string

	// PlainCitation is the rendered citation text Word stored with the field.
	PlainCitation string

	Items []EncodedItem

	// Written lists identifiers whose records were created by this call.
	Written []string
}

// Decoder turns field payloads into keys and persists item records.
type Decoder struct {
	jurisdictions *jurisdiction.Map
	store         *RecordStore
	logger        *zap.Logger

	fieldsDecoded  int
	recordsWritten int
}

// NewDecoder creates a decoder. The jurisdiction map may be nil, in which case
// codes are left as they are; the store may be nil to skip persistence.
func NewDecoder(jurisdictions *jurisdiction.Map, store *RecordStore, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{
		jurisdictions: jurisdictions,
		store:         store,
		logger:        logger,
	}
}

// DecodeField parses a cleaned payload, encodes its items and writes a record
// for every identifier not yet persisted.
func (decoder *Decoder) DecodeField(rawPayload string) (*DecodedField, error) {
	payload, err := ParsePayload(rawPayload)
	if err != nil {
		return nil, err
	}

	decoded := &DecodedField{
		PlainCitation: payload.Properties.PlainCitation,
		Items:         make([]EncodedItem, 0, len(payload.CitationItems)),
	}
	for _, item := range payload.CitationItems {
		identifier, err := item.Identifier()
		if err != nil {
			return nil, fmt.Errorf("citation %s: %w", payload.CitationID, err)
		}

		decoder.expandJurisdiction(identifier, item.ItemData)

		decoded.Items = append(decoded.Items, EncodedItem{
			Signal:         DetectSignal(item.Prefix),
			Identifier:     identifier,
			SuppressAuthor: item.SuppressAuthor,
			Locator:        item.Locator,
		})

		if decoder.store == nil {
			continue
		}
		if decoder.store.Exists(identifier) {
			decoder.logger.Debug("citation record already stored", zap.String("id", identifier))
			continue
		}
		written, err := decoder.store.Put(identifier, item.ItemData)
		if err != nil {
			return nil, err
		}
		if written {
			decoded.Written = append(decoded.Written, identifier)
			decoder.recordsWritten++
			decoder.logger.Debug("wrote citation record", zap.String("id", identifier))
		}
	}

	decoded.Key = JoinKeys(decoded.Items)
	decoder.fieldsDecoded++
	return decoded, nil
}

// expandJurisdiction replaces the item's jurisdiction code with its packed
// display form. Items without a jurisdiction, or with an unknown code, are
// left untouched.
func (decoder *Decoder) expandJurisdiction(identifier string, itemData map[string]any) {
	if itemData == nil {
		return
	}
	code, ok := itemData[jurisdictionField].(string)
	if !ok || code == "" {
		return
	}
	packed, ok := decoder.jurisdictions.Pack(code)
	if !ok {
		decoder.logger.Debug("unknown jurisdiction code",
			zap.String("id", identifier),
			zap.String("jurisdiction", code),
		)
		return
	}
	itemData[jurisdictionField] = packed
}

// FieldsDecoded returns how many fields this decoder has decoded.
func (decoder *Decoder) FieldsDecoded() int {
	return decoder.fieldsDecoded
}

// RecordsWritten returns how many new records this decoder has written.
func (decoder *Decoder) RecordsWritten() int {
	return decoder.recordsWritten
}
