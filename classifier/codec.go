package classifier

import (
	"fmt"
	"log/slog"
	"lyrics-lab/architecture"
	"lyrics-lab/errors"
	"lyrics-lab/nn"
	"lyrics-lab/preprocess"
	"lyrics-lab/tensor"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// formatVersion is bumped whenever the blob layout changes incompatibly.
const formatVersion = 1

// Blob layout, protobuf wire format:
//
//	1 format version    7 vocabulary capacity
//	2 bundle id         8 tokens (repeated, id order)
//	3 bundle version    9 vocabulary hash
//	4 spec (message)   10 parameters (repeated message)
//	5 max length       11 saved at, unix nanoseconds
//	6 tokenizer        12 trained
const (
	fieldFormat protowire.Number = iota + 1
	fieldID
	fieldVersion
	fieldSpec
	fieldMaxLen
	fieldTokenizer
	fieldCapacity
	fieldToken
	fieldHash
	fieldParam
	fieldSavedAt
	fieldTrained
)

const (
	specLabel protowire.Number = iota + 1
	specEmbedding
	specBlock
	specDense
	specLearningRate
	specLoss
)

const (
	blockFilters protowire.Number = iota + 1
	blockKernel
	blockNormalize
	blockDropout
)

const (
	denseUnits protowire.Number = iota + 1
	denseDropout
)

const (
	tokenizerCasing protowire.Number = iota + 1
	tokenizerStopWords
	tokenizerUnicode
)

const (
	paramName protowire.Number = iota + 1
	paramShape
	paramValues
)

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// encodeBundle serializes everything needed to rebuild b on another pipeline.
// Parameters are stored as raw float64 so a reload predicts bit for bit the same.
func encodeBundle(b *Bundle, savedAt time.Time) []byte {
	vocab := b.Vocabulary()
	var out []byte
	out = appendVarint(out, fieldFormat, formatVersion)
	out = appendString(out, fieldID, b.ID.String())
	out = appendVarint(out, fieldVersion, uint64(b.Version))
	out = appendMessage(out, fieldSpec, encodeSpec(b.Spec))
	out = appendVarint(out, fieldMaxLen, uint64(b.Encoder.MaxLen()))

	cfg := vocab.Tokenizer().Config()
	var tok []byte
	tok = appendBool(tok, tokenizerCasing, cfg.NormalizeCasing)
	tok = appendBool(tok, tokenizerStopWords, cfg.RemoveStopWords)
	tok = appendBool(tok, tokenizerUnicode, cfg.UnicodeLetters)
	out = appendMessage(out, fieldTokenizer, tok)

	out = appendVarint(out, fieldCapacity, uint64(vocab.Capacity()))
	for _, token := range vocab.Tokens() {
		out = appendString(out, fieldToken, token)
	}
	out = appendString(out, fieldHash, vocab.Hash())

	for _, p := range b.Model.Params() {
		var msg []byte
		msg = appendString(msg, paramName, p.Name)
		var shape []byte
		for _, d := range p.Shape {
			shape = protowire.AppendVarint(shape, uint64(d))
		}
		msg = appendMessage(msg, paramShape, shape)
		values := make([]byte, 0, 8*p.Size())
		for _, v := range p.Value.Data() {
			values = protowire.AppendFixed64(values, math.Float64bits(v))
		}
		msg = appendMessage(msg, paramValues, values)
		out = appendMessage(out, fieldParam, msg)
	}

	out = appendVarint(out, fieldSavedAt, uint64(savedAt.UnixNano()))
	out = appendBool(out, fieldTrained, b.Trained)
	return out
}

func encodeSpec(s architecture.Spec) []byte {
	var out []byte
	out = appendString(out, specLabel, s.Label)
	out = appendVarint(out, specEmbedding, uint64(s.EmbeddingDim))
	for _, block := range s.Blocks {
		var msg []byte
		msg = appendVarint(msg, blockFilters, uint64(block.Filters))
		msg = appendVarint(msg, blockKernel, uint64(block.KernelSize))
		msg = appendBool(msg, blockNormalize, block.Normalize)
		msg = appendDouble(msg, blockDropout, block.Dropout)
		out = appendMessage(out, specBlock, msg)
	}
	for _, dense := range s.Dense {
		var msg []byte
		msg = appendVarint(msg, denseUnits, uint64(dense.Units))
		msg = appendDouble(msg, denseDropout, dense.Dropout)
		out = appendMessage(out, specDense, msg)
	}
	out = appendDouble(out, specLearningRate, s.LearningRate)
	out = appendString(out, specLoss, string(s.Loss))
	return out
}

// field is one decoded tag/value pair. Only the member matching typ is set.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	fixed  uint64
	bytes  []byte
}

func (f field) double() float64 {
	return math.Float64frombits(f.fixed)
}

// walk calls fn for every top-level field of msg.
func walk(msg []byte, fn func(f field) error) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return fmt.Errorf("%w: %v", errors.ErrCorruptModel, protowire.ParseError(n))
		}
		msg = msg[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(msg)
		case protowire.Fixed64Type:
			f.fixed, n = protowire.ConsumeFixed64(msg)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(msg)
		default:
			n = protowire.ConsumeFieldValue(num, typ, msg)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", errors.ErrCorruptModel, num, protowire.ParseError(n))
		}
		msg = msg[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

type storedParam struct {
	name   string
	shape  []int
	values []float64
}

type decoded struct {
	format    uint64
	id        uuid.UUID
	version   int
	spec      architecture.Spec
	maxLen    int
	tokenizer preprocess.TokenizerConfig
	capacity  int
	tokens    []string
	hash      string
	params    []storedParam
	savedAt   time.Time
	trained   bool
}

func decodeBlob(blob []byte) (decoded, error) {
	var d decoded
	err := walk(blob, func(f field) error {
		switch f.num {
		case fieldFormat:
			d.format = f.varint
		case fieldID:
			id, err := uuid.ParseBytes(f.bytes)
			if err != nil {
				return fmt.Errorf("%w: bundle id: %v", errors.ErrCorruptModel, err)
			}
			d.id = id
		case fieldVersion:
			d.version = int(f.varint)
		case fieldSpec:
			spec, err := decodeSpec(f.bytes)
			if err != nil {
				return err
			}
			d.spec = spec
		case fieldMaxLen:
			d.maxLen = int(f.varint)
		case fieldTokenizer:
			return walk(f.bytes, func(t field) error {
				v := protowire.DecodeBool(t.varint)
				switch t.num {
				case tokenizerCasing:
					d.tokenizer.NormalizeCasing = v
				case tokenizerStopWords:
					d.tokenizer.RemoveStopWords = v
				case tokenizerUnicode:
					d.tokenizer.UnicodeLetters = v
				}
				return nil
			})
		case fieldCapacity:
			d.capacity = int(f.varint)
		case fieldToken:
			d.tokens = append(d.tokens, string(f.bytes))
		case fieldHash:
			d.hash = string(f.bytes)
		case fieldParam:
			p, err := decodeParam(f.bytes)
			if err != nil {
				return err
			}
			d.params = append(d.params, p)
		case fieldSavedAt:
			d.savedAt = time.Unix(0, int64(f.varint)).UTC()
		case fieldTrained:
			d.trained = protowire.DecodeBool(f.varint)
		}
		return nil
	})
	if err != nil {
		return decoded{}, err
	}
	if d.format != formatVersion {
		return decoded{}, fmt.Errorf("%w: unsupported format version %d", errors.ErrCorruptModel, d.format)
	}
	return d, nil
}

func decodeSpec(msg []byte) (architecture.Spec, error) {
	var s architecture.Spec
	err := walk(msg, func(f field) error {
		switch f.num {
		case specLabel:
			s.Label = string(f.bytes)
		case specEmbedding:
			s.EmbeddingDim = int(f.varint)
		case specBlock:
			var block architecture.ConvBlock
			err := walk(f.bytes, func(b field) error {
				switch b.num {
				case blockFilters:
					block.Filters = int(b.varint)
				case blockKernel:
					block.KernelSize = int(b.varint)
				case blockNormalize:
					block.Normalize = protowire.DecodeBool(b.varint)
				case blockDropout:
					block.Dropout = b.double()
				}
				return nil
			})
			s.Blocks = append(s.Blocks, block)
			return err
		case specDense:
			var dense architecture.DenseBlock
			err := walk(f.bytes, func(b field) error {
				switch b.num {
				case denseUnits:
					dense.Units = int(b.varint)
				case denseDropout:
					dense.Dropout = b.double()
				}
				return nil
			})
			s.Dense = append(s.Dense, dense)
			return err
		case specLearningRate:
			s.LearningRate = f.double()
		case specLoss:
			s.Loss = nn.LossKind(f.bytes)
		}
		return nil
	})
	return s, err
}

func decodeParam(msg []byte) (storedParam, error) {
	var p storedParam
	err := walk(msg, func(f field) error {
		switch f.num {
		case paramName:
			p.name = string(f.bytes)
		case paramShape:
			for b := f.bytes; len(b) > 0; {
				v, n := protowire.ConsumeVarint(b)
				if n < 0 {
					return fmt.Errorf("%w: shape of %q", errors.ErrCorruptModel, p.name)
				}
				p.shape = append(p.shape, int(v))
				b = b[n:]
			}
		case paramValues:
			if len(f.bytes)%8 != 0 {
				return fmt.Errorf("%w: values of %q are truncated", errors.ErrCorruptModel, p.name)
			}
			p.values = make([]float64, 0, len(f.bytes)/8)
			for b := f.bytes; len(b) > 0; b = b[8:] {
				v, _ := protowire.ConsumeFixed64(b)
				p.values = append(p.values, math.Float64frombits(v))
			}
		}
		return nil
	})
	return p, err
}

// decodeBundle rebuilds a bundle from blob, allocating its model in backend.
// A blob whose tokens do not hash to the stored fingerprint is rejected with
// ErrVocabularyMismatch, structural damage with ErrCorruptModel.
func decodeBundle(blob []byte, backend *tensor.Backend, log *slog.Logger) (*Bundle, error) {
	d, err := decodeBlob(blob)
	if err != nil {
		return nil, err
	}
	vocab, err := preprocess.NewVocabulary(d.tokens, d.capacity, d.tokenizer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrCorruptModel, err)
	}
	if vocab.Hash() != d.hash {
		return nil, fmt.Errorf("%w: stored fingerprint %.12s, tokens hash to %.12s", errors.ErrVocabularyMismatch, d.hash, vocab.Hash())
	}
	enc, err := preprocess.NewEncoder(vocab, d.maxLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrCorruptModel, err)
	}

	model, err := architecture.Create(backend, vocab.Len(), d.maxLen, d.spec, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrCorruptModel, err)
	}
	params := model.Params()
	if len(params) != len(d.params) {
		model.Release()
		return nil, fmt.Errorf("%w: %d parameters stored, architecture has %d", errors.ErrCorruptModel, len(d.params), len(params))
	}
	for i, p := range params {
		stored := d.params[i]
		if stored.name != p.Name || !slices.Equal(stored.shape, p.Shape) || len(stored.values) != p.Size() {
			model.Release()
			return nil, fmt.Errorf("%w: parameter %q %v does not match stored %q %v",
				errors.ErrCorruptModel, p.Name, p.Shape, stored.name, stored.shape)
		}
		copy(p.Value.Data(), stored.values)
	}

	log.Debug("Model blob decoded",
		"id", d.id, "version", d.version, "architecture", d.spec.Label,
		"vocab", vocab.Len(), "saved_at", d.savedAt)
	return &Bundle{
		ID:      d.id,
		Version: d.version,
		Spec:    d.spec,
		Encoder: enc,
		Model:   model,
		Trained: d.trained,
	}, nil
}

// BlobSummary describes a stored model without rebuilding it.
type BlobSummary struct {
	ID                uuid.UUID
	Version           int
	Architecture      string
	VocabSize         int
	MaxSequenceLength int
	Params            int
	SavedAt           time.Time
	Trained           bool
}

func Describe(blob []byte) (BlobSummary, error) {
	d, err := decodeBlob(blob)
	if err != nil {
		return BlobSummary{}, err
	}
	params := 0
	for _, p := range d.params {
		params += len(p.values)
	}
	return BlobSummary{
		ID:                d.id,
		Version:           d.version,
		Architecture:      d.spec.Label,
		VocabSize:         len(d.tokens),
		MaxSequenceLength: d.maxLen,
		Params:            params,
		SavedAt:           d.savedAt,
		Trained:           d.trained,
	}, nil
}
