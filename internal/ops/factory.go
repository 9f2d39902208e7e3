package ops

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bnema/odfops/internal/domain"
)

// Factory builds operations from specs. Only registered optypes are accepted.
type Factory struct {
	decoders map[domain.OpType]specDecoder
}

type specDecoder func(data []byte) (Spec, error)

func NewFactory() *Factory {
	f := &Factory{decoders: map[domain.OpType]specDecoder{}}
	register[AddMemberSpec](f)
	register[UpdateMemberSpec](f)
	register[RemoveMemberSpec](f)
	register[AddCursorSpec](f)
	register[RemoveCursorSpec](f)
	register[MoveCursorSpec](f)
	register[SetBlobSpec](f)
	register[RemoveBlobSpec](f)
	register[AddStyleSpec](f)
	register[RemoveStyleSpec](f)
	register[InsertTextSpec](f)
	register[RemoveTextSpec](f)
	register[SplitParagraphSpec](f)
	register[SetParagraphStyleSpec](f)
	register[UpdateMetadataSpec](f)
	return f
}

func register[S Spec](f *Factory) {
	var zero S
	f.decoders[zero.kind()] = func(data []byte) (Spec, error) {
		var spec S
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, err
		}
		return spec, nil
	}
}

func (f *Factory) Supports(opType domain.OpType) bool {
	_, ok := f.decoders[opType]
	return ok
}

func (f *Factory) OpTypes() []domain.OpType {
	types := make([]domain.OpType, 0, len(f.decoders))
	for opType := range f.decoders {
		types = append(types, opType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Create validates spec and returns the operation it describes. An empty
// optype in the header is filled in from the spec type.
func (f *Factory) Create(spec Spec) (Operation, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil spec", domain.ErrMalformedOperation)
	}

	header := spec.SpecHeader()
	if header.OpType == "" {
		header.OpType = spec.kind()
	}
	if header.OpType != spec.kind() {
		return nil, malformed(header.OpType, "spec describes %s", spec.kind())
	}
	if !f.Supports(header.OpType) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownOperation, header.OpType)
	}

	prepared, err := spec.withHeader(header).prepare()
	if err != nil {
		return nil, err
	}

	return prepared.build(), nil
}

func (f *Factory) Restamp(op Operation, timestamp int64, group string) (Operation, error) {
	spec := op.Spec()
	header := spec.SpecHeader()
	header.Timestamp = timestamp
	header.Group = group

	return f.Create(spec.withHeader(header))
}

func (f *Factory) Reattribute(op Operation, memberID domain.MemberID) (Operation, error) {
	spec := op.Spec()
	header := spec.SpecHeader()
	header.MemberID = memberID

	return f.Create(spec.withHeader(header))
}

func (f *Factory) Decode(data []byte) (Operation, error) {
	var envelope struct {
		OpType domain.OpType `json:"optype"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", domain.ErrMalformedOperation, err)
	}
	if envelope.OpType == "" {
		return nil, fmt.Errorf("%w: optype is required", domain.ErrMalformedOperation)
	}

	decode, ok := f.decoders[envelope.OpType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownOperation, envelope.OpType)
	}

	spec, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedOperation, envelope.OpType, err)
	}

	return f.Create(spec)
}

// DecodeBatch decodes every entry or none: the first failure rejects the
// whole batch.
func (f *Factory) DecodeBatch(batch []json.RawMessage) ([]Operation, error) {
	operations := make([]Operation, 0, len(batch))
	for i, raw := range batch {
		op, err := f.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode operation %d: %w", i, err)
		}
		operations = append(operations, op)
	}

	return operations, nil
}

func Encode(op Operation) ([]byte, error) {
	data, err := json.Marshal(op.Spec())
	if err != nil {
		return nil, fmt.Errorf("encode %s operation: %w", op.Type(), err)
	}

	return data, nil
}

func EncodeBatch(operations []Operation) ([]json.RawMessage, error) {
	batch := make([]json.RawMessage, 0, len(operations))
	for _, op := range operations {
		data, err := Encode(op)
		if err != nil {
			return nil, err
		}
		batch = append(batch, data)
	}

	return batch, nil
}
