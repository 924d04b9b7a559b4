package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, serviceDocs)
	})
}

const serviceDocs = `# Kuberafi Settlement Service

Settles completed currency-exchange orders into operator cash boxes and
computes the house commission for each order.

## Settlement

- POST /api/v1/orders/{id}/settle settles inline. Settling a completed
  order again returns already_settled=true and writes nothing.
- POST /api/v1/orders/{id}/complete settles inline in sync mode; in async
  mode the order moves to processing and an orders.completed event is
  published for the settlement worker.
- POST /api/v1/orders/{id}/cancel and /fail close the order without ledger
  effects.

Error statuses:
- 404 unknown order, commission or payment method
- 409 invalid status transition, or no active payment method for a currency
- 422 overdraft rejected (only with feature.ledger_reject_overdraft on)
- 503 balance conflict after retries

## Cash ledger

- GET  /api/v1/operators/{operator_id}/balances
- GET  /api/v1/operators/{operator_id}/balances?payment_method_id=&currency=
- POST /api/v1/operators/{operator_id}/movements
- GET  /api/v1/operators/{operator_id}/ledger-entries
- GET  /api/v1/balances/{id}/verify

## Commissions

- GET  /api/v1/commissions
- POST /api/v1/commissions/{id}/approve|reject|cancel|pay

## Payment methods

- GET  /api/v1/payment-methods
- POST /api/v1/payment-methods/{id}/default|activate|deactivate

## Operations

- GET /healthz
- GET /readyz
- GET /metrics
- GET /swagger/index.html
- GET|PUT /api/v1/system-settings/switches/{name}
`
