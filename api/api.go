package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/core"
	kitendpoint "github.com/go-kit/kit/endpoint"
	kitlog "github.com/go-kit/kit/log"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/mitchellh/mapstructure"
)

type ErrIllegalArgument struct {
	Reason string
}

func (e ErrIllegalArgument) Error() string {
	return fmt.Sprintf("err illegal argument: %s", e.Reason)
}

// Transaction is the transaction format clients submit through api
type Transaction struct {
	From   string `json:"from" mapstructure:"from"`
	To     string `json:"to" mapstructure:"to"`
	Amount int    `json:"amount" mapstructure:"amount"`
}

// ValidateTx is a transaction validator for node which accepts only api
// transactions
func ValidateTx(tx hbbft.Transaction) bool {
	transaction, ok := tx.(Transaction)
	if !ok {
		return false
	}
	return transaction.From != "" && transaction.To != "" && transaction.Amount > 0
}

type endpoint struct {
	logger kitlog.Logger
	hbbft  core.Hbbft
}

func newEndpoint(hbbft core.Hbbft, logger kitlog.Logger) *endpoint {
	return &endpoint{
		logger: logger,
		hbbft:  hbbft,
	}
}

func NewApiHandler(hbbft core.Hbbft, logger kitlog.Logger) http.Handler {
	endpoint := newEndpoint(hbbft, logger)
	r := mux.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorLogger(logger),
		kithttp.ServerErrorEncoder(encodeError),
	}

	r.Methods("GET").Path("/healthz").HandlerFunc(func(w http.ResponseWriter, request *http.Request) {
		logger.Log("method", "GET", "endpoint", "healthz")
		w.Write([]byte("up"))
	})

	r.Methods("POST").Path("/tx").Handler(kithttp.NewServer(
		endpoint.proposeTx,
		decodeProposeTxRequest,
		encodeResponse,
		opts...,
	))

	r.Methods("GET").Path("/status").Handler(kithttp.NewServer(
		endpoint.makeStatusEndpoint(),
		func(context.Context, *http.Request) (interface{}, error) { return nil, nil },
		encodeResponse,
		opts...,
	))
	return r
}

func (e *endpoint) proposeTx(ctx context.Context, request interface{}) (interface{}, error) {
	e.logger.Log("endpoint", "proposeTx")

	f := e.makeProposeTxEndpoint()
	response, err := f(ctx, request)
	if err != nil {
		e.logger.Log("endpoint", "proposeTx", "err", err.Error())
	}
	return response, err
}

func (e *endpoint) makeProposeTxEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(ProposeTxRequest)
		if err := e.hbbft.Submit(req.Transaction); err != nil {
			return nil, ErrIllegalArgument{err.Error()}
		}
		return ProposeTxResponse{Accepted: true}, nil
	}
}

func (e *endpoint) makeStatusEndpoint() kitendpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		return e.hbbft.Status(), nil
	}
}

type ProposeTxRequest struct {
	Transaction Transaction `mapstructure:"transaction"`
}

type ProposeTxResponse struct {
	Accepted bool `json:"accepted"`
}

// decodeProposeTxRequest accepts loosely typed json, for example amount
// written as string
func decodeProposeTxRequest(_ context.Context, r *http.Request) (interface{}, error) {
	raw := make(map[string]interface{})
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, ErrIllegalArgument{err.Error()}
	}

	body := ProposeTxRequest{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &body,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, ErrIllegalArgument{err.Error()}
	}
	if reflect.DeepEqual(body.Transaction, Transaction{}) {
		return nil, ErrIllegalArgument{"transaction is empty"}
	}
	return body, nil
}

func encodeResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if e, ok := response.(errorer); ok && e.error() != nil {
		encodeError(ctx, e.error(), w)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}

type errorer interface {
	error() error
}

// encode errors from business-logic
func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	switch err.(type) {
	case ErrIllegalArgument:
		w.WriteHeader(http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}
