package orders

type Status string

const (
	StatusPending          Status = "pending"
	StatusConfirmed        Status = "confirmed"
	StatusProcessing       Status = "processing"
	StatusReadyForShipment Status = "ready_for_shipment"
	StatusShipped          Status = "shipped"
	StatusOutForDelivery   Status = "out_for_delivery"
	StatusDelivered        Status = "delivered"
	StatusCancelled        Status = "cancelled"
	StatusRefunded         Status = "refunded"
	StatusFailed           Status = "failed"
	StatusOnHold           Status = "on_hold"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:          {StatusConfirmed: true, StatusCancelled: true, StatusFailed: true, StatusOnHold: true},
	StatusConfirmed:        {StatusProcessing: true, StatusCancelled: true, StatusFailed: true, StatusOnHold: true},
	StatusProcessing:       {StatusReadyForShipment: true, StatusCancelled: true, StatusRefunded: true, StatusOnHold: true},
	StatusReadyForShipment: {StatusShipped: true, StatusOnHold: true},
	StatusShipped:          {StatusOutForDelivery: true, StatusDelivered: true, StatusRefunded: true},
	StatusOutForDelivery:   {StatusDelivered: true},
	StatusDelivered:        {StatusRefunded: true},
	StatusOnHold:           {StatusProcessing: true, StatusCancelled: true},
	StatusCancelled:        {},
	StatusRefunded:         {},
	StatusFailed:           {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}
