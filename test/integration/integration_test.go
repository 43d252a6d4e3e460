package integration

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/config"
	"github.com/DE-labtory/hbbft/core"
	"github.com/DE-labtory/hbbft/test/util"
	"github.com/DE-labtory/hbbft/tpke"
)

func setUpNodes(t *testing.T, n int, scheme string) []*core.Node {
	f := hbbft.MaxFaulty(n)
	addrs := util.GetAvailableAddresses(n, 25000)
	addrList := make([]string, 0)
	memberMap := hbbft.NewMemberMap()
	for _, addr := range addrs {
		addrList = append(addrList, addr.String())
		memberMap.Add(hbbft.NewMemberWithAddress(addr))
	}

	keySet, err := tpke.Setup(scheme, n, f)
	if err != nil {
		t.Fatalf("error in Setup : %s", err.Error())
	}

	nodeList := make([]*core.Node, 0)
	for _, addr := range addrs {
		conf := config.Default()
		conf.Identity.Address = addr.String()
		conf.Members.Addresses = addrList
		conf.HoneyBadger.NetworkSize = n
		conf.HoneyBadger.Byzantine = f
		conf.HoneyBadger.BatchSize = n
		conf.HoneyBadger.ProposeInterval = 20 * time.Millisecond
		conf.Tpke.Scheme = scheme

		keyShare, err := keySet.KeyShare(memberMap.Index(addr))
		if err != nil {
			t.Fatalf("error in KeyShare : %s", err.Error())
		}
		node, err := core.NewWithConfig(conf, keyShare, func(tx hbbft.Transaction) bool {
			return true
		})
		if err != nil {
			t.Fatalf("error in NewWithConfig : %s", err.Error())
		}
		node.Run()
		nodeList = append(nodeList, node)
	}

	deadline := time.Now().Add(10 * time.Second)
	for _, node := range nodeList {
		for node.ConnectAll(addrList) != nil {
			if time.Now().After(deadline) {
				t.Fatalf("failed to connect nodes")
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
	return nodeList
}

// collect receives batches until no batch comes for idle
func collect(node *core.Node, idle time.Duration) []hbbft.Batch {
	result := make([]hbbft.Batch, 0)
	for {
		select {
		case batch := <-node.Result():
			result = append(result, batch)
		case <-time.After(idle):
			return result
		}
	}
}

func TestIntegration(t *testing.T) {
	tests := []struct {
		n      int
		scheme string
	}{
		{n: 4, scheme: tpke.SchemeElGamal},
		{n: 4, scheme: tpke.SchemeBls12},
	}

	for _, test := range tests {
		nodeList := setUpNodes(t, test.n, test.scheme)

		submitted := make(map[string]bool)
		for i, node := range nodeList {
			for j := 0; j < 3; j++ {
				tx := fmt.Sprintf("tx-%d-%d", i, j)
				if err := node.Submit(tx); err != nil {
					t.Fatalf("error in Submit : %s", err.Error())
				}
				submitted[tx] = true
			}
		}

		results := make([][]hbbft.Batch, len(nodeList))
		done := make(chan int)
		for i, node := range nodeList {
			go func(i int, node *core.Node) {
				results[i] = collect(node, 5*time.Second)
				done <- i
			}(i, node)
		}
		for range nodeList {
			<-done
		}
		for _, node := range nodeList {
			node.Close()
		}

		shortest := len(results[0])
		for _, batches := range results {
			if len(batches) < shortest {
				shortest = len(batches)
			}
		}
		if shortest == 0 {
			t.Fatalf("%s : expected batches on every node, but got none", test.scheme)
		}

		committed := make(map[string]bool)
		for i, batches := range results {
			for e := 0; e < shortest; e++ {
				if !reflect.DeepEqual(batches[e], results[0][e]) {
					t.Fatalf("%s node %d epoch %d : expected %v, but got %v", test.scheme, i, e, results[0][e], batches[e])
				}
				if batches[e].Epoch != hbbft.Epoch(e) {
					t.Fatalf("%s node %d : expected epoch %d, but got %d", test.scheme, i, e, batches[e].Epoch)
				}
			}
		}
		for e := 0; e < shortest; e++ {
			for _, tx := range results[0][e].TxList() {
				s, ok := tx.(string)
				if !ok || !submitted[s] {
					t.Fatalf("%s : unexpected transaction %v", test.scheme, tx)
				}
				if committed[s] {
					t.Fatalf("%s : transaction %s is committed twice", test.scheme, s)
				}
				committed[s] = true
			}
		}
		if len(committed) == 0 {
			t.Fatalf("%s : expected committed transactions, but got none", test.scheme)
		}
	}
}
