package dispatcher

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/gymqr/pkg/puregym"
	"github.com/papercomputeco/gymqr/pkg/qrimage"
)

// FailureKind classifies why a dispatch failed.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureRequest       FailureKind = "request"
	FailureResponse      FailureKind = "response"
	FailureEncoding      FailureKind = "encoding"
	FailureSerialization FailureKind = "serialization"
	FailureDelivery      FailureKind = "delivery"
	FailureInternal      FailureKind = "internal"
)

// DeliveryError reports that the outbound transport rejected the image.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering image: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Classify returns the FailureKind for err.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var (
		reqErr  *puregym.RequestError
		respErr *puregym.ResponseError
		encErr  *qrimage.EncodingError
		serErr  *qrimage.SerializationError
		delErr  *DeliveryError
	)

	switch {
	case errors.As(err, &delErr):
		return FailureDelivery
	case errors.As(err, &reqErr):
		return FailureRequest
	case errors.As(err, &respErr):
		return FailureResponse
	case errors.As(err, &encErr):
		return FailureEncoding
	case errors.As(err, &serErr):
		return FailureSerialization
	default:
		return FailureInternal
	}
}
