package services

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/sirupsen/logrus"
	"github.com/youngalip/savor-backend/utils"
)

// MidtransConfig holds Midtrans configuration
type MidtransConfig struct {
	ServerKey    string
	ClientKey    string
	IsProduction bool
	Timeout      time.Duration
}

// MidtransService handles Midtrans API interactions
type MidtransService struct {
	config *MidtransConfig
	snap   snap.Client
	core   coreapi.Client
}

// NewMidtransService creates a new instance of MidtransService
func NewMidtransService(config *MidtransConfig) *MidtransService {
	env := midtrans.Sandbox
	if config.IsProduction {
		env = midtrans.Production
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	ms := &MidtransService{config: config}
	ms.snap.New(config.ServerKey, env)
	ms.core.New(config.ServerKey, env)
	return ms
}

// ValidateConfig validates Midtrans configuration
func (ms *MidtransService) ValidateConfig() error {
	if ms.config.ServerKey == "" {
		return fmt.Errorf("MIDTRANS_SERVER_KEY is not set")
	}
	if ms.config.ClientKey == "" {
		return fmt.Errorf("MIDTRANS_CLIENT_KEY is not set")
	}
	return nil
}

// ClientKey dipakai frontend untuk memuat snap.js
func (ms *MidtransService) ClientKey() string {
	return ms.config.ClientKey
}

// CreateCheckout membuat transaksi Snap. SDK tidak menerima context, jadi panggilannya
// dibatasi lewat select terhadap ctx.
func (ms *MidtransService) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	items := make([]midtrans.ItemDetails, 0, len(req.Lines))
	for _, line := range req.Lines {
		items = append(items, midtrans.ItemDetails{
			ID:    line.ID,
			Name:  line.Name,
			Price: line.Price,
			Qty:   line.Quantity,
		})
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.GrossAmount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
		Items: &items,
	}
	if req.FinishURL != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: req.FinishURL}
	}

	type snapResult struct {
		resp *snap.Response
		err  error
	}
	done := make(chan snapResult, 1)
	go func() {
		resp, mErr := ms.snap.CreateTransaction(snapReq)
		if mErr != nil {
			done <- snapResult{err: mErr}
			return
		}
		done <- snapResult{resp: resp}
	}()

	ctx, cancel := context.WithTimeout(ctx, ms.config.Timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("midtrans snap: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			utils.ErrorLogger.WithError(res.err).WithField("order_uuid", req.OrderID).Error("midtrans snap request failed")
			return nil, fmt.Errorf("midtrans snap: %w", res.err)
		}
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_uuid":   req.OrderID,
			"gross_amount": req.GrossAmount,
		}).Info("midtrans snap token created")
		return &CheckoutResult{
			Token:       res.resp.Token,
			RedirectURL: res.resp.RedirectURL,
			OrderID:     req.OrderID,
			GrossAmount: req.GrossAmount,
		}, nil
	}
}

// CheckTransactionStatus checks transaction status from Midtrans
func (ms *MidtransService) CheckTransactionStatus(ctx context.Context, orderID string) (*Notification, error) {
	type statusResult struct {
		resp *coreapi.TransactionStatusResponse
		err  error
	}
	done := make(chan statusResult, 1)
	go func() {
		resp, mErr := ms.core.CheckTransaction(orderID)
		if mErr != nil {
			done <- statusResult{err: mErr}
			return
		}
		done <- statusResult{resp: resp}
	}()

	ctx, cancel := context.WithTimeout(ctx, ms.config.Timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("midtrans status: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("midtrans status: %w", res.err)
		}
		if res.resp == nil {
			return nil, errors.New("midtrans status: empty response")
		}
		return &Notification{
			OrderID:           res.resp.OrderID,
			TransactionStatus: res.resp.TransactionStatus,
			FraudStatus:       res.resp.FraudStatus,
			TransactionID:     res.resp.TransactionID,
			StatusCode:        res.resp.StatusCode,
			GrossAmount:       res.resp.GrossAmount,
			SignatureKey:      res.resp.SignatureKey,
			PaymentType:       res.resp.PaymentType,
		}, nil
	}
}

// ValidateSignature validates Midtrans signature
func (ms *MidtransService) ValidateSignature(orderID, statusCode, grossAmount, signature string) bool {
	return ValidMidtransSignature(ms.config.ServerKey, orderID, statusCode, grossAmount, signature)
}

// MidtransSignature -> SHA512(order_id + status_code + gross_amount + server_key) dalam hex
func MidtransSignature(serverKey, orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func ValidMidtransSignature(serverKey, orderID, statusCode, grossAmount, signature string) bool {
	expected := MidtransSignature(serverKey, orderID, statusCode, grossAmount)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
