package merkletree

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/cbergoon/merkletree"
)

type MerkleData = merkletree.Content
type RootPath [][]byte
type RootHash []byte

type Wrapper struct {
	tree merkletree.MerkleTree
}

func (w *Wrapper) MerkleRoot() RootHash {
	return w.tree.MerkleRoot()
}

func (w *Wrapper) MerklePath(data Data) (RootPath, []int64, error) {
	return w.tree.GetMerklePath(data.Content)
}

func New(dataList []Data) (*Wrapper, error) {
	var merkleDataList []MerkleData

	for _, data := range dataList {
		merkleDataList = append(merkleDataList, data.Content)
	}

	t, err := merkletree.NewTree(merkleDataList)
	if err != nil {
		return nil, err
	}

	return &Wrapper{*t}, nil
}

type Data struct {
	Content content
}

// NewIndexedData binds data to its position, so a valid path of the data
// also proves the position
func NewIndexedData(index int, data []byte) Data {
	c := make(content, 4+len(data))
	binary.BigEndian.PutUint32(c[:4], uint32(index))
	copy(c[4:], data)
	return Data{Content: c}
}

func (d Data) CalculateHash() ([]byte, error) {
	return d.Content.CalculateHash()
}

func (d Data) Equals(a Data) (bool, error) {
	return d.Content.Equals(a.Content)
}

func (d Data) Bytes() []byte {
	return d.Content
}

type content []byte

func (c content) CalculateHash() ([]byte, error) {
	h := sha256.New()
	if _, err := h.Write([]byte(c)); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

func (c content) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(content)
	if !ok {
		return false, nil
	}
	return bytes.Equal(c, o), nil
}

// ValidatePath checks data is the leaf of tree with rootHash. indexList
// tells for every level whether the sibling in rootPath is right (1) or left (0).
// Malformed path from remote node just fails validation.
func ValidatePath(data Data, rootHash RootHash, rootPath RootPath, indexList []int64) bool {
	if len(rootPath) != len(indexList) || len(rootHash) != sha256.Size {
		return false
	}

	leaf := make(content, 2*sha256.Size)
	branch, err := data.CalculateHash()
	if err != nil {
		return false
	}

	for i, path := range rootPath {
		if len(path) != sha256.Size {
			return false
		}

		switch indexList[i] {
		case 0:
			copy(leaf[:sha256.Size], path)
			copy(leaf[sha256.Size:], branch)
		case 1:
			copy(leaf[:sha256.Size], branch)
			copy(leaf[sha256.Size:], path)
		default:
			return false
		}

		if branch, err = leaf.CalculateHash(); err != nil {
			return false
		}
	}

	return bytes.Equal(rootHash, branch)
}
