package signals

// Wire names of the hello exchange. They match what the front-end sends and listens for.
const (
	HelloRequestSignal  = "RustHelloRequest"
	HelloResponseSignal = "RustHelloResponse"
)

// HelloRequest is the front-end asking for a greeting. It has no fields.
type HelloRequest struct{}

// HelloResponse carries the greeting back to the front-end.
type HelloResponse struct {
	Message string `json:"message"`
}
