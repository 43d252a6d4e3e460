package honeybadger

// DecShareRequest carries decryption share of sender for the ciphertext
// of one proposer
type DecShareRequest struct {
	Share []byte
}

func (r DecShareRequest) Recv() {}
