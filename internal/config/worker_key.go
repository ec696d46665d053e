package config

type WorkerKeyStruct struct {
	PersistAnswersQueue    string
	PersistPlayEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:    "persist_answers_queue",
	PersistPlayEventsQueue: "persist_play_events_queue",
}
