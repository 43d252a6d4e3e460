package hbbft

import (
	"encoding/json"

	"github.com/DE-labtory/iLogger"
)

type Transaction interface{}

// Contribution is a set of transactions which node proposes in one epoch
type Contribution struct {
	TxList []Transaction
}

func (c Contribution) Encode() ([]byte, error) {
	return json.Marshal(c)
}

func DecodeContribution(data []byte) (Contribution, error) {
	contribution := Contribution{}
	if err := json.Unmarshal(data, &contribution); err != nil {
		return Contribution{}, err
	}
	return contribution, nil
}

// BatchEntry is one decrypted proposal included in a batch
type BatchEntry struct {
	Proposer Member
	Data     []byte
}

// Batch is the agreed output of an epoch. Entries are sorted by
// proposer id, so every honest node outputs identical batch.
type Batch struct {
	Epoch   Epoch
	Entries []BatchEntry
}

// TxList is a function returns the transaction list on batch. Entries
// which are not a contribution are skipped.
func (batch Batch) TxList() []Transaction {
	txList := make([]Transaction, 0)
	for _, entry := range batch.Entries {
		contribution, err := DecodeContribution(entry.Data)
		if err != nil {
			iLogger.Debugf(nil, "[Batch] skip entry of %s in epoch %d: %s", entry.Proposer.ID(), batch.Epoch, err.Error())
			continue
		}
		txList = append(txList, contribution.TxList...)
	}
	return txList
}

func (batch Batch) Proposers() []Member {
	proposers := make([]Member, 0, len(batch.Entries))
	for _, entry := range batch.Entries {
		proposers = append(proposers, entry.Proposer)
	}
	return proposers
}
