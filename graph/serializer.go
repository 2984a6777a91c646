package graph

import (
	"bytes"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/pattyshack/shrike/addr"
)

// DataMode selects how much block content is written into the stream.
type DataMode int

const (
	// Write no content at all. The image the graph was decomposed from
	// is the source of truth; LoadBlockData re-attaches content on
	// load.
	OmitData = DataMode(iota)
	// Write only content the blocks own. Borrowed content is
	// recoverable from the source image.
	OwnedData
	// Write everything.
	AllData
)

type SerializerAttributes uint32

const (
	// Drop block, section and label names.
	OmitStrings = SerializerAttributes(1 << iota)
	// Drop labels entirely.
	OmitLabels
)

// SaveBlockDataFunc is invoked for every block whose content is not
// written inline, letting the host record how to recover it.
type SaveBlockDataFunc func(block *Block) error

// LoadBlockDataFunc supplies the content of a block whose data was not
// in the stream. The returned slice must be exactly dataSize long.
type LoadBlockDataFunc func(
	block *Block,
	dataSize uint32,
) ([]byte, error)

var serializedMagic = [4]byte{'S', 'B', 'G', '1'}

const serializedVersion = uint32(1)

const flagCompressed = uint32(1 << 0)

// Serializer saves and restores block graphs. The stream carries the
// graph signature, sections, block properties and (per DataMode) block
// content, then all references in a second pass keyed by block id. A
// blake3 digest of the raw payload detects corruption; the payload is
// optionally xz compressed.
type Serializer struct {
	DataMode   DataMode
	Attributes SerializerAttributes
	Compress   bool

	SaveBlockData SaveBlockDataFunc
	LoadBlockData LoadBlockDataFunc
}

func (serializer *Serializer) HasAttributes(
	attributes SerializerAttributes,
) bool {
	return serializer.Attributes&attributes == attributes
}

func (serializer *Serializer) Save(
	graph *BlockGraph,
	writer io.Writer,
) error {
	payload := &bytes.Buffer{}
	out := NewOutArchive(payload)

	serializer.saveSignature(graph.signature, out)
	serializer.saveSections(graph, out)

	blocks := graph.Blocks()
	out.PutUint32(uint32(len(blocks)))
	for _, block := range blocks {
		err := serializer.saveBlockProperties(block, out)
		if err != nil {
			return err
		}
	}
	for _, block := range blocks {
		serializer.saveBlockReferences(block, out)
	}

	if out.Err() != nil {
		return out.Err()
	}

	raw := payload.Bytes()
	digest := blake3.Sum256(raw)

	flags := uint32(0)
	if serializer.Compress {
		flags |= flagCompressed
	}

	header := NewOutArchive(writer)
	header.PutBytes(serializedMagic[:])
	header.PutUint32(serializedVersion)
	header.PutUint32(flags)
	header.PutUint32(uint32(serializer.DataMode))
	header.PutUint32(uint32(serializer.Attributes))
	header.PutBytes(digest[:])
	if header.Err() != nil {
		return header.Err()
	}

	if serializer.Compress {
		compressor, err := xz.NewWriter(writer)
		if err != nil {
			return err
		}
		_, err = compressor.Write(raw)
		if err != nil {
			return err
		}
		return compressor.Close()
	}

	_, err := writer.Write(raw)
	return err
}

func (serializer *Serializer) saveSignature(
	signature Signature,
	out *OutArchive,
) {
	out.PutBytes(signature.ModuleID[:])
	out.PutUint32(signature.BaseAddress.Value())
	out.PutUint32(signature.ModuleSize)
}

func (serializer *Serializer) saveSections(
	graph *BlockGraph,
	out *OutArchive,
) {
	sections := graph.Sections()
	out.PutUint32(uint32(len(sections)))
	for _, section := range sections {
		out.PutUint32(uint32(section.id))
		serializer.saveString(section.name, out)
		out.PutUint32(section.characteristics)
	}
}

func (serializer *Serializer) saveString(
	value string,
	out *OutArchive,
) {
	if serializer.HasAttributes(OmitStrings) {
		out.PutString("")
	} else {
		out.PutString(value)
	}
}

func (serializer *Serializer) saveBlockProperties(
	block *Block,
	out *OutArchive,
) error {
	out.PutUint32(uint32(block.id))
	out.PutUint32(uint32(block.blockType))
	out.PutUint32(block.size)
	out.PutUint32(block.alignment)
	out.PutUint32(block.address.Value())
	out.PutUint32(uint32(block.section))
	out.PutUint32(uint32(block.attributes))
	serializer.saveString(block.name, out)

	pairs := block.sourceRanges.RangePairs()
	out.PutUint32(uint32(len(pairs)))
	for _, pair := range pairs {
		out.PutInt32(pair.Data.Offset)
		out.PutUint32(pair.Data.Size)
		out.PutUint32(pair.Source.Address.Value())
		out.PutUint32(pair.Source.Size)
	}

	if serializer.HasAttributes(OmitLabels) {
		out.PutUint32(0)
	} else {
		offsets := block.LabelOffsets()
		out.PutUint32(uint32(len(offsets)))
		for _, offset := range offsets {
			label := block.labels[offset]
			out.PutInt32(offset)
			serializer.saveString(label.Name, out)
			out.PutUint32(uint32(label.Attributes))
		}
	}

	saveData := serializer.DataMode == AllData ||
		(serializer.DataMode == OwnedData && block.ownsData)

	out.PutBool(block.ownsData)
	out.PutUint32(block.DataSize())
	out.PutBool(saveData)
	if saveData {
		out.PutBytes(block.data)
	} else if block.DataSize() > 0 && serializer.SaveBlockData != nil {
		err := serializer.SaveBlockData(block)
		if err != nil {
			return err
		}
	}

	return nil
}

func (serializer *Serializer) saveBlockReferences(
	block *Block,
	out *OutArchive,
) {
	offsets := block.ReferenceOffsets()
	out.PutUint32(uint32(len(offsets)))
	for _, offset := range offsets {
		ref := block.references[offset]
		out.PutInt32(offset)
		out.PutUint32(uint32(ref.Type))
		out.PutUint32(ref.Size)
		out.PutUint32(uint32(ref.To.id))
		out.PutInt32(ref.Offset)
		out.PutInt32(ref.Base)
	}
}

func (serializer *Serializer) Load(reader io.Reader) (*BlockGraph, error) {
	header := NewInArchive(reader)

	magic := header.GetBytes(4)
	version := header.GetUint32()
	flags := header.GetUint32()
	// The data mode and serializer attributes are informational on
	// load; each block records whether its content follows, and omitted
	// names and labels are simply absent from the payload.
	header.GetUint32()
	header.GetUint32()
	digest := header.GetBytes(32)
	if header.Err() != nil {
		return nil, header.Err()
	}

	if !bytes.Equal(magic, serializedMagic[:]) {
		return nil, fmt.Errorf("bad magic: %q", magic)
	}
	if version != serializedVersion {
		return nil, fmt.Errorf("unsupported version: %d", version)
	}

	payloadReader := reader
	if flags&flagCompressed != 0 {
		decompressor, err := xz.NewReader(reader)
		if err != nil {
			return nil, err
		}
		payloadReader = decompressor
	}

	raw, err := io.ReadAll(payloadReader)
	if err != nil {
		return nil, err
	}

	computed := blake3.Sum256(raw)
	if !bytes.Equal(digest, computed[:]) {
		return nil, fmt.Errorf("payload digest mismatch")
	}

	in := NewInArchive(bytes.NewReader(raw))
	graph := NewBlockGraph()

	err = serializer.loadSignature(graph, in)
	if err != nil {
		return nil, err
	}
	err = serializer.loadSections(graph, in)
	if err != nil {
		return nil, err
	}

	numBlocks := in.GetUint32()
	blocks := make([]*Block, 0, numBlocks)
	for i := uint32(0); i < numBlocks; i++ {
		block, err := serializer.loadBlockProperties(graph, in)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	for _, block := range blocks {
		err = serializer.loadBlockReferences(graph, block, in)
		if err != nil {
			return nil, err
		}
	}

	if in.Err() != nil {
		return nil, in.Err()
	}

	return graph, nil
}

func (serializer *Serializer) loadSignature(
	graph *BlockGraph,
	in *InArchive,
) error {
	moduleID, err := uuid.FromBytes(in.GetBytes(16))
	if in.Err() != nil {
		return in.Err()
	}
	if err != nil {
		return err
	}

	graph.SetSignature(Signature{
		ModuleID:    moduleID,
		BaseAddress: addr.AbsoluteAddress(in.GetUint32()),
		ModuleSize:  in.GetUint32(),
	})
	return in.Err()
}

func (serializer *Serializer) loadSections(
	graph *BlockGraph,
	in *InArchive,
) error {
	numSections := in.GetUint32()
	for i := uint32(0); i < numSections; i++ {
		id := SectionID(in.GetUint32())
		name := in.GetString()
		characteristics := in.GetUint32()
		if in.Err() != nil {
			return in.Err()
		}

		if name == "" {
			// Names may have been omitted on save; sections still need
			// one.
			name = fmt.Sprintf("section-%d", id)
		}

		_, ok := graph.sections[id]
		if ok {
			return fmt.Errorf("duplicate section id %d", id)
		}
		graph.sections[id] = newSection(id, name, characteristics)
		if id > graph.nextSectionID {
			graph.nextSectionID = id
		}
	}
	return nil
}

func (serializer *Serializer) loadBlockProperties(
	graph *BlockGraph,
	in *InArchive,
) (
	*Block,
	error,
) {
	id := BlockID(in.GetUint32())
	blockType := BlockType(in.GetUint32())
	size := in.GetUint32()
	alignment := in.GetUint32()
	address := addr.RelativeAddress(in.GetUint32())
	section := SectionID(in.GetUint32())
	attributes := BlockAttributes(in.GetUint32())
	name := in.GetString()
	if in.Err() != nil {
		return nil, in.Err()
	}

	if int(blockType) >= len(blockTypeNames) {
		return nil, fmt.Errorf("block %d: bad block type %d", id, blockType)
	}
	if !IsPowerOfTwo(alignment) {
		return nil, fmt.Errorf("block %d: bad alignment %d", id, alignment)
	}

	_, ok := graph.blocks[id]
	if ok {
		return nil, fmt.Errorf("duplicate block id %d", id)
	}

	block := newBlock(id, blockType, size, name)
	block.alignment = alignment
	block.address = address
	block.section = section
	block.attributes = attributes
	graph.blocks[id] = block
	if id > graph.nextBlockID {
		graph.nextBlockID = id
	}

	numPairs := in.GetUint32()
	for i := uint32(0); i < numPairs; i++ {
		data := DataRange{
			Offset: in.GetInt32(),
			Size:   in.GetUint32(),
		}
		source := SourceRange{
			Address: addr.RelativeAddress(in.GetUint32()),
			Size:    in.GetUint32(),
		}
		if in.Err() != nil {
			return nil, in.Err()
		}
		if !block.sourceRanges.Push(data, source) {
			return nil, fmt.Errorf("block %d: bad source range pair", id)
		}
	}

	numLabels := in.GetUint32()
	for i := uint32(0); i < numLabels; i++ {
		offset := in.GetInt32()
		label := NewLabel(
			in.GetString(),
			LabelAttributes(in.GetUint32()))
		if in.Err() != nil {
			return nil, in.Err()
		}
		if offset < 0 || uint32(offset) > size {
			return nil, fmt.Errorf(
				"block %d: label offset %d out of bounds",
				id,
				offset)
		}
		if !block.SetLabel(offset, label) {
			return nil, fmt.Errorf("block %d: duplicate label at %d", id, offset)
		}
	}

	ownsData := in.GetBool()
	dataSize := in.GetUint32()
	dataSaved := in.GetBool()
	if in.Err() != nil {
		return nil, in.Err()
	}
	if dataSize > size {
		return nil, fmt.Errorf(
			"block %d: data size %d exceeds block size %d",
			id,
			dataSize,
			size)
	}

	var data []byte
	if dataSaved {
		data = in.GetBytes(dataSize)
		if in.Err() != nil {
			return nil, in.Err()
		}
	} else if dataSize > 0 {
		if serializer.LoadBlockData == nil {
			return nil, fmt.Errorf(
				"block %d: stream omits data and no LoadBlockData is set",
				id)
		}
		var err error
		data, err = serializer.LoadBlockData(block, dataSize)
		if err != nil {
			return nil, err
		}
		if uint32(len(data)) != dataSize {
			return nil, fmt.Errorf(
				"block %d: LoadBlockData returned %d bytes, want %d",
				id,
				len(data),
				dataSize)
		}
	}

	if data != nil {
		if ownsData {
			block.CopyData(data)
		} else {
			block.SetData(data)
		}
	}

	return block, nil
}

func (serializer *Serializer) loadBlockReferences(
	graph *BlockGraph,
	block *Block,
	in *InArchive,
) error {
	numRefs := in.GetUint32()
	for i := uint32(0); i < numRefs; i++ {
		offset := in.GetInt32()
		refType := ReferenceType(in.GetUint32())
		refSize := in.GetUint32()
		toID := BlockID(in.GetUint32())
		refOffset := in.GetInt32()
		refBase := in.GetInt32()
		if in.Err() != nil {
			return in.Err()
		}

		to, ok := graph.blocks[toID]
		if !ok {
			return fmt.Errorf(
				"%s: reference at %d targets unknown block %d",
				block,
				offset,
				toID)
		}

		ref := Reference{
			Type:   refType,
			Size:   refSize,
			To:     to,
			Offset: refOffset,
			Base:   refBase,
		}
		if !ref.IsValid() {
			return fmt.Errorf("%s: invalid reference at %d", block, offset)
		}
		if offset < 0 || uint32(offset)+refSize > block.size {
			return fmt.Errorf(
				"%s: reference at %d out of bounds",
				block,
				offset)
		}
		if to.blockType == CodeBlock || to.blockType == BasicCodeBlock {
			if refOffset < 0 || uint32(refOffset) > to.size {
				return fmt.Errorf(
					"%s: reference at %d points outside %s",
					block,
					offset,
					to)
			}
		}

		block.SetReference(offset, ref)
	}
	return nil
}
