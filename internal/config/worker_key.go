package config

type WorkerKeyStruct struct {
	PersistRecordEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistRecordEventsQueue: "persist_record_events_queue",
}
