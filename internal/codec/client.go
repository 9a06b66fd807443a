package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region constants
// EncodeMethod is the full gRPC method name of the sentence encoder service.
// Requests and responses are google.protobuf.Struct values so the service
// needs no generated stubs on either side.
const EncodeMethod = "/memnet.v1.EncoderService/Encode"
// #endregion constants

// #region client-struct
// Client wraps the gRPC connection to an external sentence encoder.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}
// #endregion client-struct

// #region constructor
// NewClient connects to the encoder service at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
// Used for testing without a real gRPC server.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client owns one.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region encode
// EncodeSentences sends a batch of embedded sentences, each a list of word
// vectors, and returns one encoding per sentence.
//
// Request:  {"sentences": [[[w00...], [w01...]], ...]}
// Response: {"encodings": [[e0...], [e1...], ...]}
func (c *Client) EncodeSentences(ctx context.Context, sentences [][][]float64) ([][]float64, error) {
	batch := make([]any, len(sentences))
	for i, words := range sentences {
		ws := make([]any, len(words))
		for j, vec := range words {
			vs := make([]any, len(vec))
			for k, v := range vec {
				vs[k] = v
			}
			ws[j] = vs
		}
		batch[i] = ws
	}
	req, err := structpb.NewStruct(map[string]any{"sentences": batch})
	if err != nil {
		return nil, fmt.Errorf("build encode request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, EncodeMethod, req, resp); err != nil {
		return nil, fmt.Errorf("encode rpc (%s): %w", status.Code(err), err)
	}

	rows := resp.GetFields()["encodings"].GetListValue().GetValues()
	if len(rows) != len(sentences) {
		return nil, fmt.Errorf("encode rpc: got %d encodings for %d sentences", len(rows), len(sentences))
	}
	out := make([][]float64, len(rows))
	width := -1
	for i, row := range rows {
		vals := row.GetListValue().GetValues()
		if width >= 0 && len(vals) != width {
			return nil, fmt.Errorf("encode rpc: encoding %d has width %d, expected %d", i, len(vals), width)
		}
		width = len(vals)
		out[i] = make([]float64, len(vals))
		for j, v := range vals {
			out[i][j] = v.GetNumberValue()
		}
	}
	return out, nil
}
// #endregion encode
