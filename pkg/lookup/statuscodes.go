package lookup

// StatusInfo describes one milestone status code. StopSequence selects
// the event location: 1 means the shipper/origin side, 2 the
// consignee/destination side.
type StatusInfo struct {
	Description  string
	StopSequence int
}

var statusCodes = map[string]StatusInfo{
	"APU": {Description: "PICK UP ATTEMPT", StopSequence: 1},
	"SER": {Description: "SHIPMENT EN ROUTE", StopSequence: 1},
	"COB": {Description: "INTRANSIT", StopSequence: 1},
	"AAG": {Description: "ARRIVED AT DESTINATION GATEWAY", StopSequence: 2},
	"REF": {Description: "SHIPMENT REFUSED", StopSequence: 1},
	"APL": {Description: "ONSITE", StopSequence: 1},
	"WEB": {Description: "NEW WEB SHIPMENT", StopSequence: 1},
	"AAO": {Description: "ARRIVED AT OMNI DESTINATION", StopSequence: 2},
	"AAD": {Description: "ARRIVED AT DESTINATION", StopSequence: 2},
	"SOS": {Description: "EMERGENCY WEATHER DELAY", StopSequence: 1},
	"SDE": {Description: "SHIPMENT DELAYED", StopSequence: 1},
	"DGW": {Description: "SHIPMENT DEPARTED GATEWAY", StopSequence: 1},
	"TTC": {Description: "LOADED", StopSequence: 1},
	"NEW": {Description: "NEW SHIPMENT", StopSequence: 1},
	"SRS": {Description: "SHIPMENT RETURNED TO SHIPPER", StopSequence: 1},
	"TPC": {Description: "TRANSFER TO PARTNER CARRIER", StopSequence: 1},
	"PUP": {Description: "PICKED UP", StopSequence: 1},
	"OFD": {Description: "OUT FOR DELIVERY", StopSequence: 2},
	"CAN": {Description: "CANCELLED", StopSequence: 1},
	"OSD": {Description: "SHIPMENT DAMAGED", StopSequence: 1},
	"RCS": {Description: "RECONSIGNED", StopSequence: 1},
	"ADL": {Description: "DELIVERY ATTEMPTED", StopSequence: 2},
	"LOD": {Description: "LOADED", StopSequence: 1},
	"DEL": {Description: "DELIVERED", StopSequence: 2},
	"ED":  {Description: "ESTIMATED DELIVERY", StopSequence: 2},
	"APD": {Description: "DELIVERY APPOINTMENT SCHEDULED", StopSequence: 2},
	"DAR": {Description: "DELIVERY APPOINTMENT REQUESTED", StopSequence: 2},
	"HAW": {Description: "HELD AT WAREHOUSE", StopSequence: 2},
	"DAS": {Description: "DELIVERY APPOINTMENT SECURED", StopSequence: 2},
}

// StatusCode resolves a milestone status code. Unknown codes return
// ok=false; callers drop those records before any state is touched.
func StatusCode(code string) (StatusInfo, bool) {
	info, ok := statusCodes[code]
	return info, ok
}

// StopSequence returns the event-location side for a code. Unmapped
// codes default to the consignee side.
func StopSequence(code string) int {
	if info, ok := statusCodes[code]; ok {
		return info.StopSequence
	}
	return 2
}
