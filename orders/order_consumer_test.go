package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
)

func TestRequestToOrderMapsFields(t *testing.T) {
	amount := 25.50
	req := domain.OrderCreateRequest{
		ExternalClientID: "+51999999999",
		ClientName:       "Maria",
		ClientPhone:      "+51999999999",
		ServiceType:      "mototaxi",
		Origin:           "casa",
		Destination:      "trabajo",
		PaymentHint:      "efectivo",
		AmountEstimate:   &amount,
		Items: []domain.OrderCreateItem{
			{Name: "paquete", Qty: 1},
		},
	}

	order := requestToOrder(req)

	require.NotEmpty(t, order.OrderID, "a fresh order id must be generated")
	assert.Equal(t, domain.ServiceMototaxi, order.ServiceType)
	assert.Equal(t, "Maria", order.ClientName)
	assert.Equal(t, "casa", order.Origin.Description)
	assert.Equal(t, "trabajo", order.Destination.Description)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "paquete", order.Items[0].ItemName)
	require.NotNil(t, order.AmountEstimate)
	assert.InDelta(t, 25.50, *order.AmountEstimate, 0.001)
}

func TestRequestToOrderNormalizesUnknownServiceType(t *testing.T) {
	req := domain.OrderCreateRequest{ServiceType: "algo inesperado"}
	order := requestToOrder(req)
	assert.Equal(t, domain.ServiceOtro, order.ServiceType)
}

func TestRequestToOrderGeneratesDistinctIDs(t *testing.T) {
	order1 := requestToOrder(domain.OrderCreateRequest{})
	order2 := requestToOrder(domain.OrderCreateRequest{})
	assert.NotEqual(t, order1.OrderID, order2.OrderID)
}
