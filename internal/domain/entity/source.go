package entity

// Source table rows, read-only from the engine's perspective. Field
// names mirror the upstream warehouse schema.

// ShipmentHeader is the header row for one order
type ShipmentHeader struct {
	OrderNo           string `bson:"PK_OrderNo"`
	UUID              string `bson:"UUid"`
	Housebill         string `bson:"Housebill"`
	BillNo            string `bson:"BillNo"`
	ScheduledDateTime string `bson:"ScheduledDateTime"`
	ETADateTime       string `bson:"ETADateTime"`
}

// Shipper is one origin-address row; an order may have several
type Shipper struct {
	OrderNo  string `bson:"FK_ShipOrderNo"`
	Name     string `bson:"ShipName"`
	City     string `bson:"ShipCity"`
	State    string `bson:"FK_ShipState"`
	Zip      string `bson:"ShipZip"`
	Country  string `bson:"FK_ShipCountry"`
	Sequence int    `bson:"ShipSequence,omitempty"`
}

// Consignee is one destination-address row; an order may have several
type Consignee struct {
	OrderNo  string `bson:"FK_ConOrderNo"`
	City     string `bson:"ConCity"`
	State    string `bson:"FK_ConState"`
	Zip      string `bson:"ConZip"`
	Country  string `bson:"FK_ConCountry"`
	Sequence int    `bson:"ConSequence,omitempty"`
}

// Milestone process states, advanced around event-path handling
const (
	ProcessStateNotProcessed = "Not Processed"
	ProcessStatePending      = "Pending"
	ProcessStateProcessed    = "Processed"
)

// Milestone is one status-history row for an order
type Milestone struct {
	OrderNo       string `bson:"FK_OrderNo"`
	OrderStatusID string `bson:"FK_OrderStatusId"`
	EventDateTime string `bson:"EventDateTime"`
	UUID          string `bson:"UUid"`
	ProcessState  string `bson:"ProcessState"`
}
