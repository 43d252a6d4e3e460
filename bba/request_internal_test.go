package bba

import (
	"testing"

	"github.com/DE-labtory/hbbft"
)

func TestDefaultIncomingReqRepository(t *testing.T) {
	repo := newDefaultIncomingRequestRepository()
	addr1, _ := hbbft.ToAddress("localhost:8080")
	addr2, _ := hbbft.ToAddress("localhost:8081")
	addr3, _ := hbbft.ToAddress("localhost:8082")

	repo.Save(1, addr1, &BvalRequest{Value: hbbft.One})
	repo.Save(1, addr2, &BvalRequest{Value: hbbft.Zero})

	result := repo.Find(1)
	if len(result) != 2 {
		t.Fatalf("expected length of result is %d, but got %d", 2, len(result))
	}
	if result[0].Addr != addr1 || result[1].Addr != addr2 {
		t.Fatalf("expected requests in saved order, but got %v", result)
	}

	repo.Save(2, addr3, &AuxRequest{Value: hbbft.One})
	result = repo.Find(1)
	if len(result) != 2 {
		t.Fatalf("expected length of result is %d, but got %d", 2, len(result))
	}

	result = repo.Find(2)
	if len(result) != 1 {
		t.Fatalf("expected length of result is %d, but got %d", 1, len(result))
	}

	repo.Delete(1)
	if repo.Len() != 1 {
		t.Fatalf("expected length of repository is %d, but got %d", 1, repo.Len())
	}
}

func TestConfReqRepository(t *testing.T) {
	repo := newConfReqRepository()
	addr, _ := hbbft.ToAddress("localhost:8080")

	if _, err := repo.Find(addr); !IsErrNoResult(err) {
		t.Fatalf("expected error %s, but got %v", ErrNoResult, err)
	}
	if err := repo.Save(addr, &AuxRequest{}); err != ErrInvalidType {
		t.Fatalf("expected error %s, but got %v", ErrInvalidType, err)
	}

	conf := &ConfRequest{Values: []hbbft.Binary{hbbft.One}}
	if err := repo.Save(addr, conf); err != nil {
		t.Fatalf("error in Save : %s", err.Error())
	}
	req, err := repo.Find(addr)
	if err != nil || req != conf {
		t.Fatalf("expected %v, but got %v", conf, req)
	}
	if len(repo.FindAll()) != 1 {
		t.Fatalf("expected 1 request, but got %d", len(repo.FindAll()))
	}
}
