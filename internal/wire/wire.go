// Package wire encodes and decodes the IR document at the CLI boundary: the
// textual/JSON shape (blocks keyed by "name"/"code"/"next_block", statements
// keyed by "op"/"dest"/"src1", "src2", ...) described by the original
// program's util.py helpers, which the in-memory ir.Code/Operation types
// deliberately don't carry (see the ir package doc comment).
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/minuteman3/ssa-optimiser/internal/ir"
)

// Decode parses a JSON IR document of the shape
//
//	{"blocks": [{"name": "...", "code": [{"op": "...", "dest": "...", "src1": "...", ...}], "next_block": ["..."]}]}
//
// into an ir.Code. Deleted is never set on read: the wire format has no
// "delete" field surviving a well-formed document (intermediate passes
// delete in-memory and Sweep before anything is re-serialized).
func Decode(data []byte) (*ir.Code, error) {
	var doc struct {
		Blocks []struct {
			Name      string            `json:"name"`
			Code      []json.RawMessage `json:"code"`
			NextBlock []string          `json:"next_block"`
		} `json:"blocks"`
		StartingBlock string `json:"starting_block,omitempty"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("wire: decode document: %w", err)
	}

	code := &ir.Code{StartingBlock: doc.StartingBlock}
	for _, wb := range doc.Blocks {
		blk := ir.Block{Name: wb.Name, Next: wb.NextBlock}
		for _, raw := range wb.Code {
			op, err := decodeStatement(raw)
			if err != nil {
				return nil, fmt.Errorf("wire: block %q: %w", wb.Name, err)
			}
			blk.Code = append(blk.Code, op)
		}
		code.Blocks = append(code.Blocks, blk)
	}
	return code, nil
}

func decodeStatement(raw json.RawMessage) (ir.Operation, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ir.Operation{}, fmt.Errorf("decode statement: %w", err)
	}

	var op ir.Operation
	if opField, ok := fields["op"]; ok {
		if err := json.Unmarshal(opField, &op.Op); err != nil {
			return ir.Operation{}, fmt.Errorf("decode op: %w", err)
		}
	}
	if destField, ok := fields["dest"]; ok {
		if err := json.Unmarshal(destField, &op.Dest); err != nil {
			return ir.Operation{}, fmt.Errorf("decode dest: %w", err)
		}
	}

	var srcKeys []string
	for k := range fields {
		if strings.HasPrefix(k, "src") {
			srcKeys = append(srcKeys, k)
		}
	}
	sort.Slice(srcKeys, func(i, j int) bool {
		ni, _ := strconv.Atoi(srcKeys[i][3:])
		nj, _ := strconv.Atoi(srcKeys[j][3:])
		return ni < nj
	})
	for _, k := range srcKeys {
		var v string
		if err := json.Unmarshal(fields[k], &v); err != nil {
			return ir.Operation{}, fmt.Errorf("decode %s: %w", k, err)
		}
		op.Src = append(op.Src, v)
	}
	return op, nil
}

// Encode renders code back to the same JSON shape Decode reads, with
// statement fields in "op", "dest", "src1", "src2", ... order and no
// trailing "delete"/bookkeeping keys — any Deleted operations must have
// already been removed by ir.Sweep before encoding.
func Encode(code *ir.Code) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"blocks":[`)
	for bi, b := range code.Blocks {
		if bi > 0 {
			buf.WriteByte(',')
		}
		if err := encodeBlock(&buf, b); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`]`)
	if code.StartingBlock != "" {
		buf.WriteString(`,"starting_block":`)
		name, err := json.Marshal(code.StartingBlock)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
	}
	buf.WriteString(`}`)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("wire: format document: %w", err)
	}
	return pretty.Bytes(), nil
}

func encodeBlock(buf *bytes.Buffer, b ir.Block) error {
	buf.WriteString(`{"name":`)
	name, err := json.Marshal(b.Name)
	if err != nil {
		return err
	}
	buf.Write(name)

	buf.WriteString(`,"code":[`)
	for i, op := range b.Code {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeStatement(buf, op); err != nil {
			return err
		}
	}
	buf.WriteString(`],"next_block":[`)
	for i, n := range b.Next {
		if i > 0 {
			buf.WriteByte(',')
		}
		enc, err := json.Marshal(n)
		if err != nil {
			return err
		}
		buf.Write(enc)
	}
	buf.WriteString(`]}`)
	return nil
}

func encodeStatement(buf *bytes.Buffer, op ir.Operation) error {
	buf.WriteString(`{"op":`)
	opEnc, err := json.Marshal(op.Op)
	if err != nil {
		return err
	}
	buf.Write(opEnc)

	if op.HasDest() {
		buf.WriteString(`,"dest":`)
		destEnc, err := json.Marshal(op.Dest)
		if err != nil {
			return err
		}
		buf.Write(destEnc)
	}
	for i, src := range op.Src {
		fmt.Fprintf(buf, `,"src%d":`, i+1)
		srcEnc, err := json.Marshal(src)
		if err != nil {
			return err
		}
		buf.Write(srcEnc)
	}
	buf.WriteString(`}`)
	return nil
}
