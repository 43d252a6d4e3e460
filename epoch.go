package hbbft

// Epoch is the sequence number of agreed batch, every epoch outputs exactly
// one batch and epochs are delivered in increasing order.
type Epoch uint64

func (e Epoch) Next() Epoch {
	return e + 1
}

// Fault tolerance of network with n nodes
func MaxFaulty(n int) int {
	if n <= 0 {
		return 0
	}
	return (n - 1) / 3
}
