package mgmt

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/schema"
)

var decoder = schema.NewDecoder()

func init() {
	decoder.IgnoreUnknownKeys(false)
}

// newFaceArgs decodes "newface <ip> <port>".
type newFaceArgs struct {
	IP   string `schema:"ip,required"`
	Port string `schema:"port,required"`
}

// newForwardingRuleArgs decodes "newforwardingrule <prefix> <face_id>".
type newForwardingRuleArgs struct {
	Prefix string `schema:"prefix,required"`
	FaceID uint64 `schema:"face_id,required"`
}

// newContentArgs decodes "newcontent <name> <payload>".
type newContentArgs struct {
	Name    string `schema:"name,required"`
	Payload string `schema:"payload,required"`
}

// positional maps a command's space-separated argument list onto the
// schema field names dst expects, in order, then decodes through
// gorilla/schema the same way an HTTP form would be. The line protocol is
// positional; schema tags want named form fields, so this bridges the two
// without hand-rolling struct-field assignment per command.
func positional(fields []string, names []string, dst any) error {
	if len(fields) != len(names) {
		return fmt.Errorf("expected %d argument(s), got %d", len(names), len(fields))
	}
	values := url.Values{}
	for i, name := range names {
		values.Set(name, fields[i])
	}
	return decoder.Decode(dst, values)
}

func parseNewFace(fields []string) (newFaceArgs, error) {
	var a newFaceArgs
	err := positional(fields, []string{"ip", "port"}, &a)
	return a, err
}

func parseNewForwardingRule(fields []string) (newForwardingRuleArgs, error) {
	var a newForwardingRuleArgs
	err := positional(fields, []string{"prefix", "face_id"}, &a)
	return a, err
}

func parseNewContent(fields []string) (newContentArgs, error) {
	var a newContentArgs
	err := positional(fields, []string{"name", "payload"}, &a)
	return a, err
}

// splitLine tokenizes a command line on whitespace, returning the verb and
// its remaining argument fields.
func splitLine(line string) (verb string, fields []string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
