package merkletree

import (
	"strconv"
	"testing"
)

func setUpMerkleData(n int) []Data {
	var merkleDataList []Data

	for idx := 0; idx < n; idx++ {
		merkleDataList = append(merkleDataList, NewIndexedData(idx, []byte(strconv.Itoa(idx))))
	}

	return merkleDataList
}

func TestData_CalculateHash(t *testing.T) {
	data := NewIndexedData(0, []byte("merkle tree's data block"))

	hash, err := data.CalculateHash()
	if err != nil {
		t.Fatalf("error in sha256 hasing : %s", err.Error())
	}

	if len(hash) != 32 {
		t.Fatalf("error in hash size - expected=32, got=%d", len(hash))
	}
}

func TestData_Equals(t *testing.T) {
	data := NewIndexedData(1, []byte("merkle tree's data block"))
	cpyData := NewIndexedData(1, []byte("merkle tree's data block"))

	ok, err := data.Equals(cpyData)
	if err != nil {
		t.Fatalf("error in bytes equals : %s", err.Error())
	}
	if !ok {
		t.Fatalf("not equal data - expected=%x, got=%x", data, cpyData)
	}

	otherIndex := NewIndexedData(2, []byte("merkle tree's data block"))
	if ok, _ := data.Equals(otherIndex); ok {
		t.Fatalf("expected data of other index not equal")
	}
}

// merkle tree maintain tree leaf as even number. tree makes new right-leaf
func TestNewMerkleTree(t *testing.T) {
	datas := setUpMerkleData(5)

	_, err := New(datas)
	if err != nil {
		t.Fatalf("error in make merkle tree : %s", err.Error())
	}
}

func TestValidatePath_balance(t *testing.T) {
	dataList := setUpMerkleData(4)

	tree, err := New(dataList)
	if err != nil {
		t.Fatalf("error in NewTree : %s", err.Error())
	}

	rootHash := tree.MerkleRoot()
	rootPath, indexList, err := tree.MerklePath(dataList[1])
	if err != nil {
		t.Fatalf("error in GetMerklePath : %s", err.Error())
	}

	if !ValidatePath(dataList[1], rootHash, rootPath, indexList) {
		t.Fatalf("error in ValidatePath")
	}
}

func TestValidatePath_unbalance(t *testing.T) {
	dataList := setUpMerkleData(5)

	tree, err := New(dataList)
	if err != nil {
		t.Fatalf("error in NewTree : %s", err.Error())
	}

	rootHash := tree.MerkleRoot()
	rootPath, indexes, err := tree.MerklePath(dataList[4])
	if err != nil {
		t.Fatalf("error in GetMerklePath : %s", err.Error())
	}

	if !ValidatePath(dataList[4], rootHash, rootPath, indexes) {
		t.Fatalf("error in ValidatePath")
	}
}

func TestValidatePath_Malformed(t *testing.T) {
	dataList := setUpMerkleData(4)

	tree, err := New(dataList)
	if err != nil {
		t.Fatalf("error in NewTree : %s", err.Error())
	}

	data := dataList[2]
	rootHash := tree.MerkleRoot()
	rootPath, indexList, err := tree.MerklePath(data)
	if err != nil {
		t.Fatalf("error in GetMerklePath : %s", err.Error())
	}

	tests := []struct {
		rootPath  RootPath
		indexList []int64
	}{
		{rootPath: rootPath, indexList: indexList[:1]},
		{rootPath: RootPath{rootPath[0][:10], rootPath[1]}, indexList: indexList},
		{rootPath: rootPath, indexList: []int64{2, indexList[1]}},
		{rootPath: nil, indexList: nil},
	}

	for i, test := range tests {
		if ValidatePath(data, rootHash, test.rootPath, test.indexList) {
			t.Fatalf("test[%d] expected malformed path rejected", i)
		}
	}

	if ValidatePath(NewIndexedData(2, []byte("other")), rootHash, rootPath, indexList) {
		t.Fatalf("expected path of other data rejected")
	}
}

// identical shards at different positions have different leaves, so a path
// proves the position of a shard too
func TestNewIndexedData(t *testing.T) {
	shards := [][]byte{[]byte("same"), []byte("same"), []byte("same")}
	dataList := make([]Data, 0)
	for i, shard := range shards {
		dataList = append(dataList, NewIndexedData(i, shard))
	}

	tree, err := New(dataList)
	if err != nil {
		t.Fatalf("error in NewTree : %s", err.Error())
	}
	rootHash := tree.MerkleRoot()

	for i, shard := range shards {
		rootPath, indexList, err := tree.MerklePath(dataList[i])
		if err != nil {
			t.Fatalf("error in GetMerklePath : %s", err.Error())
		}
		if !ValidatePath(NewIndexedData(i, shard), rootHash, rootPath, indexList) {
			t.Fatalf("expected path of index %d valid", i)
		}
		other := (i + 1) % len(shards)
		if ValidatePath(NewIndexedData(other, shard), rootHash, rootPath, indexList) {
			t.Fatalf("expected path of index %d rejected for index %d", i, other)
		}
	}
}
