package entity

import (
	"fmt"
	"strings"
)

// Payload is the flattened notification sent to subscribers. All
// fields are required non-empty strings; Vpod is required only for the
// document-delivery workflow.
type Payload struct {
	ID                    string `json:"id"`
	TrackingNo            string `json:"trackingNo"`
	Carrier               string `json:"carrier"`
	StatusCode            string `json:"statusCode"`
	LastUpdateDate        string `json:"lastUpdateDate"`
	EstimatedDeliveryDate string `json:"estimatedDeliveryDate"`
	Identifier            string `json:"identifier"`
	StatusDescription     string `json:"statusDescription"`
	RetailerMoniker       string `json:"retailerMoniker"`
	OriginCity            string `json:"originCity"`
	OriginState           string `json:"originState"`
	OriginZip             string `json:"originZip"`
	OriginCountryCode     string `json:"originCountryCode"`
	DestCity              string `json:"destCity"`
	DestState             string `json:"destState"`
	DestZip               string `json:"destZip"`
	DestCountryCode       string `json:"destCountryCode"`
	EventCity             string `json:"eventCity"`
	EventState            string `json:"eventState"`
	EventZip              string `json:"eventZip"`
	EventCountryCode      string `json:"eventCountryCode"`
	Vpod                  string `json:"vpod,omitempty"`
}

// ValidationError lists every payload field that failed the
// required-field check
type ValidationError struct {
	TrackingNo string
	Fields     []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("payload validation failed for housebill %s: missing %s",
		e.TrackingNo, strings.Join(e.Fields, ", "))
}

// Validate checks that every required field is non-empty. It reports
// all offending fields, not just the first.
func (p *Payload) Validate(requireVpod bool) error {
	required := []struct {
		name  string
		value string
	}{
		{"id", p.ID},
		{"trackingNo", p.TrackingNo},
		{"carrier", p.Carrier},
		{"statusCode", p.StatusCode},
		{"lastUpdateDate", p.LastUpdateDate},
		{"estimatedDeliveryDate", p.EstimatedDeliveryDate},
		{"identifier", p.Identifier},
		{"statusDescription", p.StatusDescription},
		{"retailerMoniker", p.RetailerMoniker},
		{"originCity", p.OriginCity},
		{"originState", p.OriginState},
		{"originZip", p.OriginZip},
		{"originCountryCode", p.OriginCountryCode},
		{"destCity", p.DestCity},
		{"destState", p.DestState},
		{"destZip", p.DestZip},
		{"destCountryCode", p.DestCountryCode},
		{"eventCity", p.EventCity},
		{"eventState", p.EventState},
		{"eventZip", p.EventZip},
		{"eventCountryCode", p.EventCountryCode},
	}
	var missing []string
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if requireVpod && p.Vpod == "" {
		missing = append(missing, "vpod")
	}
	if len(missing) > 0 {
		return &ValidationError{TrackingNo: p.TrackingNo, Fields: missing}
	}
	return nil
}
