package desk

// Commands holds the opaque control payloads for the desk's write
// characteristic, as supplied by the configuration file.
type Commands struct {
	Stop        []byte
	MoveUp      []byte
	MoveDown    []byte
	FetchHeight []byte
}

// Transport is the command side of the desk link. Writes are fire-and-forget:
// the desk acknowledges nothing and all feedback arrives on the notification
// path. Implemented by the BLE session and by MockDesk.
type Transport interface {
	WriteCommand(payload []byte) error
}
