package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipment-eventing-service/internal/domain/entity"
)

func (te *testEngine) apply(t *testing.T, wf entity.Workflow, change entity.ChangeEvent) {
	t.Helper()
	u, err := te.normalizer.Normalize(context.Background(), wf, change)
	require.NoError(t, err)
	require.NoError(t, te.engine.Apply(context.Background(), u))
}

func (te *testEngine) seedAppointmentSources(orderNo string) {
	te.shipments.shippers[orderNo] = []entity.Shipper{
		{OrderNo: orderNo, Name: "Acme Freight", City: "Austin", State: "TX", Zip: "73301", Country: "US"},
	}
	te.shipments.consignees[orderNo] = []entity.Consignee{
		{OrderNo: orderNo, City: "Reno", State: "NV", Zip: "89501", Country: "US"},
	}
}

func shipperChange(orderNo string) entity.ChangeEvent {
	return entity.ChangeEvent{
		Op:          entity.OpInsert,
		SourceTable: entity.TableShipper,
		NewImage:    map[string]interface{}{"FK_ShipOrderNo": orderNo},
	}
}

func consigneeChange(orderNo string) entity.ChangeEvent {
	return entity.ChangeEvent{
		Op:          entity.OpInsert,
		SourceTable: entity.TableConsignee,
		NewImage:    map[string]interface{}{"FK_ConOrderNo": orderNo},
	}
}

func TestAppointmentDispatchesOnReadyEdge(t *testing.T) {
	te := newTestEngine()
	wf := entity.AppointmentWorkflow()
	te.seedAppointmentSources("1001")

	te.apply(t, wf, headerChange(entity.OpInsert, "1001", "HB1001", "53370", "2026-03-01 10:00:00.000", "2026-03-05 10:00:00.000"))
	assert.Empty(t, te.publisher.published, "header alone must not dispatch")

	te.apply(t, wf, shipperChange("1001"))
	assert.Empty(t, te.publisher.published, "shipper alone must not dispatch")

	te.apply(t, wf, consigneeChange("1001"))
	require.Len(t, te.publisher.published, 1, "dispatch happens once, when the last entity turns ready")

	event := te.publisher.published[0]
	assert.Equal(t, "10465268", event.CustomerID)
	assert.Equal(t, "HB1001", event.Payload.TrackingNo)
	assert.Equal(t, "DAS", event.Payload.StatusCode)
	assert.Equal(t, "DELIVERY APPOINTMENT SECURED", event.Payload.StatusDescription)
	assert.Equal(t, "Acme Freight", event.Payload.Carrier)
	assert.Equal(t, "2026-03-01 10:00:00.000", event.Payload.LastUpdateDate)
	// DAS happens at the destination
	assert.Equal(t, "Reno", event.Payload.EventCity)
	assert.Equal(t, "NV", event.Payload.EventState)

	rec := te.store.get(wf.Name, "1001")
	require.NotNil(t, rec)
	assert.Equal(t, entity.StatusSent, rec.AggregateStatus)
	assert.NotEmpty(t, rec.Payload, "dispatched payload is staged for audit")
}

func TestReplayAfterSentIsNoOp(t *testing.T) {
	te := newTestEngine()
	wf := entity.AppointmentWorkflow()
	te.seedAppointmentSources("1002")

	te.apply(t, wf, headerChange(entity.OpInsert, "1002", "HB1002", "53370", "2026-03-01 10:00:00.000", "NULL"))
	te.apply(t, wf, shipperChange("1002"))
	te.apply(t, wf, consigneeChange("1002"))
	require.Len(t, te.publisher.published, 1)

	// Replays of any entity leave the terminal record untouched
	te.apply(t, wf, consigneeChange("1002"))
	te.apply(t, wf, headerChange(entity.OpInsert, "1002", "HB1002", "53370", "2026-04-01 10:00:00.000", "NULL"))
	assert.Len(t, te.publisher.published, 1)
	assert.Equal(t, entity.StatusSent, te.store.get(wf.Name, "1002").AggregateStatus)
}

func TestNonInitiatorBeforeHeaderIsDropped(t *testing.T) {
	te := newTestEngine()
	wf := entity.AppointmentWorkflow()
	te.seedAppointmentSources("1003")

	// Shipper and consignee land before the header; nothing exists to
	// merge into yet
	te.apply(t, wf, shipperChange("1003"))
	te.apply(t, wf, consigneeChange("1003"))
	assert.Nil(t, te.store.get(wf.Name, "1003"))

	// Header creates the record with the others pending; the sweeper
	// would heal them, but fresh changes work too
	te.apply(t, wf, headerChange(entity.OpInsert, "1003", "HB1003", "53370", "2026-03-01 10:00:00.000", "NULL"))
	te.apply(t, wf, shipperChange("1003"))
	te.apply(t, wf, consigneeChange("1003"))
	assert.Len(t, te.publisher.published, 1)
}

func TestUnmappedBillDeletesRecordQuietly(t *testing.T) {
	te := newTestEngine()
	wf := entity.AppointmentWorkflow()
	te.seedAppointmentSources("1004")

	te.apply(t, wf, headerChange(entity.OpInsert, "1004", "HB1004", "99999", "2026-03-01 10:00:00.000", "NULL"))

	assert.Nil(t, te.store.get(wf.Name, "1004"), "order without a subscriber leaves no record behind")
	assert.Empty(t, te.publisher.published)
	assert.Empty(t, te.publisher.alerts, "a missing mapping is business as usual, not an incident")
}

func TestMilestoneWorkflowDispatchesImmediately(t *testing.T) {
	te := newTestEngine()
	wf := entity.MilestoneWorkflow()
	te.shipments.headers["9001"] = &entity.ShipmentHeader{
		OrderNo: "9001", UUID: "hdr-9001", Housebill: "HB9001",
		ETADateTime: "2026-03-10 10:00:00.000",
	}
	te.seedAppointmentSources("9001")
	te.shipments.milestones["9001/PUP"] = &entity.Milestone{
		OrderNo: "9001", OrderStatusID: "PUP",
		EventDateTime: "2026-03-02 09:00:00.000", UUID: "ms-9001",
	}
	te.entitlements.byHousebill["HB9001"] = []string{"CUST-A"}

	te.apply(t, wf, entity.ChangeEvent{
		Op:          entity.OpInsert,
		SourceTable: entity.TableMilestone,
		NewImage: map[string]interface{}{
			"FK_OrderNo":       "9001",
			"FK_OrderStatusId": "PUP",
			"EventDateTime":    "2026-03-02 09:00:00.000",
			"UUid":             "ms-9001",
		},
	})

	require.Len(t, te.publisher.published, 1)
	event := te.publisher.published[0]
	assert.Equal(t, "CUST-A", event.CustomerID)
	assert.Equal(t, "PUP", event.Payload.StatusCode)
	assert.Equal(t, "PICKED UP", event.Payload.StatusDescription)
	// PUP happens at the origin
	assert.Equal(t, "Austin", event.Payload.EventCity)
	assert.Equal(t, "2026-03-02 09:00:00.000", event.Payload.LastUpdateDate)
	assert.Equal(t, "2026-03-10 10:00:00.000", event.Payload.EstimatedDeliveryDate)

	rec := te.store.get(wf.Name, "9001#PUP")
	require.NotNil(t, rec)
	assert.Equal(t, entity.StatusSent, rec.AggregateStatus)
	assert.Equal(t, entity.ProcessStateProcessed, te.shipments.processStates["9001/PUP"])
}

func TestPodDocWorkflowEndToEnd(t *testing.T) {
	te := newTestEngine()
	wf := entity.PodDocWorkflow()
	te.shipments.headers["8001"] = &entity.ShipmentHeader{
		OrderNo: "8001", UUID: "hdr-8001", Housebill: "HB8001", BillNo: "70001",
		ETADateTime: "2026-03-10 10:00:00.000",
	}
	te.seedAppointmentSources("8001")
	te.shipments.milestones["8001/DEL"] = &entity.Milestone{
		OrderNo: "8001", OrderStatusID: "DEL",
		EventDateTime: "2026-03-09 16:00:00.000", UUID: "ms-8001",
	}
	te.entitlements.allowed = []string{"CUST-B"}
	te.entitlements.byHousebill["HB8001"] = []string{"CUST-B", "CUST-C"}

	// Document arrival creates the record and resolves routing through
	// the filter policy
	te.apply(t, wf, entity.ChangeEvent{
		Op:          entity.OpInsert,
		SourceTable: entity.TableFile,
		NewImage:    map[string]interface{}{"FK_OrderNo": "8001"},
	})
	rec := te.store.get(wf.Name, "8001")
	require.NotNil(t, rec)
	assert.Equal(t, entity.StatusPending, rec.AggregateStatus)
	assert.Equal(t, []string{"CUST-B"}, rec.CustomerIDs)
	assert.Empty(t, te.publisher.published)

	te.apply(t, wf, headerChange(entity.OpInsert, "8001", "HB8001", "70001", "NULL", "2026-03-10 10:00:00.000"))
	te.apply(t, wf, shipperChange("8001"))
	te.apply(t, wf, consigneeChange("8001"))
	assert.Empty(t, te.publisher.published, "delivery milestone still missing")

	te.apply(t, wf, entity.ChangeEvent{
		Op:          entity.OpInsert,
		SourceTable: entity.TableMilestone,
		NewImage: map[string]interface{}{
			"FK_OrderNo":       "8001",
			"FK_OrderStatusId": "DEL",
			"EventDateTime":    "2026-03-09 16:00:00.000",
		},
	})

	require.Len(t, te.publisher.published, 1)
	event := te.publisher.published[0]
	assert.Equal(t, "CUST-B", event.CustomerID)
	assert.Equal(t, "POD Document", event.Payload.StatusDescription)
	assert.Equal(t, "https://blob.example.com/doc.pdf", event.Payload.Vpod)
	assert.Equal(t, entity.StatusSent, te.store.get(wf.Name, "8001").AggregateStatus)
}

func TestDocumentWithoutHousebillClosesSkipped(t *testing.T) {
	te := newTestEngine()
	wf := entity.PodDocWorkflow()

	te.apply(t, wf, entity.ChangeEvent{
		Op:          entity.OpInsert,
		SourceTable: entity.TableFile,
		NewImage:    map[string]interface{}{"FK_OrderNo": "8002"},
	})

	rec := te.store.get(wf.Name, "8002")
	require.NotNil(t, rec)
	assert.Equal(t, entity.StatusSkipped, rec.AggregateStatus)
	assert.Contains(t, rec.Message, "Housebill number is not present")
	assert.Empty(t, te.publisher.published)
}

func TestPartialPublishFailureStaysRetryable(t *testing.T) {
	te := newTestEngine()
	wf := entity.MilestoneWorkflow()
	te.shipments.headers["9002"] = &entity.ShipmentHeader{
		OrderNo: "9002", Housebill: "HB9002", ETADateTime: "NA",
	}
	te.seedAppointmentSources("9002")
	te.shipments.milestones["9002/DEL"] = &entity.Milestone{
		OrderNo: "9002", OrderStatusID: "DEL", EventDateTime: "2026-03-09 16:00:00.000", UUID: "ms-9002",
	}
	te.entitlements.byHousebill["HB9002"] = []string{"CUST-OK", "CUST-DOWN"}
	te.publisher.failFor["CUST-DOWN"] = true

	u, err := te.normalizer.Normalize(context.Background(), wf, entity.ChangeEvent{
		Op:          entity.OpInsert,
		SourceTable: entity.TableMilestone,
		NewImage: map[string]interface{}{
			"FK_OrderNo":       "9002",
			"FK_OrderStatusId": "DEL",
			"EventDateTime":    "2026-03-09 16:00:00.000",
			"UUid":             "ms-9002",
		},
	})
	require.NoError(t, err)
	require.Error(t, te.engine.Apply(context.Background(), u), "the partial failure surfaces for this record")

	// The healthy key was delivered; the record stays READY with the
	// failure recorded so the sweeper retries it
	require.Len(t, te.publisher.published, 1)
	assert.Equal(t, "CUST-OK", te.publisher.published[0].CustomerID)

	rec := te.store.get(wf.Name, "9002#DEL")
	require.NotNil(t, rec)
	assert.Equal(t, entity.StatusReady, rec.AggregateStatus)
	assert.Contains(t, rec.Message, "CUST-DOWN")
	assert.NotEmpty(t, te.publisher.alerts)

	// Broker recovers; the sweep retries and completes the record
	te.publisher.failFor["CUST-DOWN"] = false
	require.NoError(t, te.sweeper.Sweep(context.Background()))
	assert.Equal(t, entity.StatusSent, te.store.get(wf.Name, "9002#DEL").AggregateStatus)
}

func TestRetriggerReopensTerminalRecord(t *testing.T) {
	te := newTestEngine()
	wf := entity.AppointmentWorkflow()
	te.seedAppointmentSources("1005")

	te.apply(t, wf, headerChange(entity.OpInsert, "1005", "HB1005", "53370", "2026-03-01 10:00:00.000", "NULL"))
	te.apply(t, wf, shipperChange("1005"))
	te.apply(t, wf, consigneeChange("1005"))
	require.Equal(t, entity.StatusSent, te.store.get(wf.Name, "1005").AggregateStatus)

	require.NoError(t, te.engine.Retrigger(context.Background(), wf, "1005"))
	rec := te.store.get(wf.Name, "1005")
	assert.Equal(t, entity.StatusPending, rec.AggregateStatus)
	assert.Zero(t, rec.RetryCount)

	// The next sweep re-derives readiness and dispatches again
	require.NoError(t, te.sweeper.Sweep(context.Background()))
	assert.Len(t, te.publisher.published, 2)
	assert.Equal(t, entity.StatusSent, te.store.get(wf.Name, "1005").AggregateStatus)
}
