package entity

// ChangeOp is the operation recorded by a change-feed notification
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpModify ChangeOp = "MODIFY"
	OpRemove ChangeOp = "REMOVE"
)

// SourceTable identifies which shipment table emitted a change record
type SourceTable string

const (
	TableShipmentHeader SourceTable = "shipment-header"
	TableShipper        SourceTable = "shipper"
	TableConsignee      SourceTable = "consignee"
	TableMilestone      SourceTable = "shipment-milestone"
	TableFile           SourceTable = "shipment-file"
)

// ChangeEvent is one change-feed notification for a single table row.
// Images are raw attribute maps; the normalizer decodes the fields it
// needs per table.
type ChangeEvent struct {
	Op          ChangeOp               `json:"op"`
	SourceTable SourceTable            `json:"sourceTable"`
	NewImage    map[string]interface{} `json:"newImage"`
	OldImage    map[string]interface{} `json:"oldImage,omitempty"`
}

// ChangeBatch is the envelope delivered per feed message
type ChangeBatch struct {
	Records []ChangeEvent `json:"records"`
}

// StringField reads a string attribute from an image, with a default
func StringField(image map[string]interface{}, key, def string) string {
	if image == nil {
		return def
	}
	v, ok := image[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// NumberField reads a numeric attribute from an image. JSON decoding
// yields float64 for numbers; string values are not coerced.
func NumberField(image map[string]interface{}, key string, def int) int {
	if image == nil {
		return def
	}
	v, ok := image[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}
