package entity

// BuildMode selects where the payload builder reads entity fields from
type BuildMode string

const (
	// BuildFromSnapshot uses the denormalized fields captured in the
	// StatusRecord at merge time
	BuildFromSnapshot BuildMode = "snapshot"
	// BuildFromSource re-queries the source tables at build time
	BuildFromSource BuildMode = "live"
)

// RoutingMode selects how customer routing keys are resolved
type RoutingMode string

const (
	// RouteByBillMapping resolves one customer from the static
	// billNo mapping for the deployment stage
	RouteByBillMapping RoutingMode = "bill-mapping"
	// RouteByEntitlement resolves customers from the entitlement
	// table, filtered to the subscription's allowed set
	RouteByEntitlement RoutingMode = "entitlement"
)

// Workflow parameterizes the reconciliation engine and payload builder
// for one notification variant. Behavior that used to be copy-pasted
// per handler lives here as data.
type Workflow struct {
	Name string

	// Tracked lists the entity types whose readiness gates dispatch
	Tracked []EntityType

	// StatusCode is the fixed outbound status code, or empty when
	// the code comes from the triggering milestone
	StatusCode string

	// StatusDescription is the fixed description literal, or empty
	// when the description is resolved from the status-code table
	StatusDescription string

	// QualifyingMilestone is the milestone status id that makes the
	// Milestone entity READY (empty when any known code qualifies)
	QualifyingMilestone string

	// Initiator is the only entity type whose arrival may create a
	// status record. Other tracked entities merge into existing
	// records and are dropped otherwise.
	Initiator EntityType

	// RoutingTrigger is the entity type whose merge resolves the
	// customer routing keys
	RoutingTrigger EntityType

	BuildMode   BuildMode
	RoutingMode RoutingMode
	RequireVpod bool

	// FilterByPolicy restricts entitlement routing to customers
	// allowed by the subscription filter policy table
	FilterByPolicy bool

	// HeaderNeedsSchedule makes header readiness depend on a real
	// scheduled delivery date, not just the row existing
	HeaderNeedsSchedule bool

	// TrackProcessState advances the triggering milestone row through
	// Not Processed / Pending / Processed as the event is handled
	TrackProcessState bool
}

// Tracks reports whether the workflow tracks the given entity type
func (w Workflow) Tracks(e EntityType) bool {
	for _, t := range w.Tracked {
		if t == e {
			return true
		}
	}
	return false
}

// AppointmentWorkflow notifies subscribers when a delivery appointment
// is secured. Header readiness drives it; shipper and consignee rows
// must be complete before the event goes out.
func AppointmentWorkflow() Workflow {
	return Workflow{
		Name:                "appointment",
		Tracked:             []EntityType{EntityHeader, EntityShipper, EntityConsignee},
		StatusCode:          "DAS",
		StatusDescription:   "DELIVERY APPOINTMENT SECURED",
		Initiator:           EntityHeader,
		RoutingTrigger:      EntityHeader,
		BuildMode:           BuildFromSnapshot,
		RoutingMode:         RouteByBillMapping,
		HeaderNeedsSchedule: true,
	}
}

// PodDocWorkflow delivers the proof-of-delivery document once the
// order is delivered and every source table is populated.
func PodDocWorkflow() Workflow {
	return Workflow{
		Name:                "pod-doc",
		Tracked:             []EntityType{EntityHeader, EntityShipper, EntityConsignee, EntityMilestone, EntityDocument},
		StatusDescription:   "POD Document",
		QualifyingMilestone: "DEL",
		Initiator:           EntityDocument,
		RoutingTrigger:      EntityDocument,
		BuildMode:           BuildFromSource,
		RoutingMode:         RouteByEntitlement,
		RequireVpod:         true,
		FilterByPolicy:      true,
	}
}

// MilestoneWorkflow relays every recognized shipment milestone as soon
// as it lands. There is nothing to wait for beyond the milestone row
// itself; header, shipper and consignee are read fresh at build time.
func MilestoneWorkflow() Workflow {
	return Workflow{
		Name:              "milestone",
		Tracked:           []EntityType{EntityMilestone},
		Initiator:         EntityMilestone,
		RoutingTrigger:    EntityMilestone,
		BuildMode:         BuildFromSource,
		RoutingMode:       RouteByEntitlement,
		TrackProcessState: true,
	}
}

// Workflows returns every workflow the service runs, keyed by name.
func Workflows() map[string]Workflow {
	out := make(map[string]Workflow)
	for _, wf := range []Workflow{AppointmentWorkflow(), PodDocWorkflow(), MilestoneWorkflow()} {
		out[wf.Name] = wf
	}
	return out
}
