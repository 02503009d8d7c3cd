package ipc

import "github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"

// Operation describes one IPC operation.
type Operation struct {
	// Name is the value of the operation header, e.g.
	// "aws.greengrass#GetConfiguration".
	Name string

	// RequestType is the service-model-type of the request.
	RequestType string

	// EventType is the service-model-type of stream events. It is empty for
	// operations that do not stream.
	EventType string

	// Errors maps remote error codes to local kinds.
	Errors ggerr.CodeMap
}

// Streaming reports whether the operation delivers stream events.
func (o Operation) Streaming() bool {
	return o.EventType != ""
}

// LookupOperation returns the operation named name.
func LookupOperation(name string) (Operation, bool) {
	for _, op := range Operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}
