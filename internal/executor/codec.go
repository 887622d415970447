// Package executor implements the filesystem executor protocol over gRPC.
//
// Messages are google.protobuf.Struct values so that no generated stubs are
// required. A request carries operation, path, content, old_text and new_text;
// a response carries success, data and error.
package executor

import (
	"fmt"

	"github.com/ashureev/shsh-chat/internal/domain"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName = "fsexec.v1.Executor"
	methodName  = "Execute"
	fullMethod  = "/" + serviceName + "/" + methodName
)

func encodeRequest(req domain.ExecRequest) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"operation": structpb.NewStringValue(string(req.Operation)),
		"path":      structpb.NewStringValue(req.Path),
	}
	if req.Content != "" {
		fields["content"] = structpb.NewStringValue(req.Content)
	}
	if req.OldText != "" {
		fields["old_text"] = structpb.NewStringValue(req.OldText)
	}
	if req.NewText != "" {
		fields["new_text"] = structpb.NewStringValue(req.NewText)
	}
	return &structpb.Struct{Fields: fields}
}

func decodeRequest(s *structpb.Struct) domain.ExecRequest {
	f := s.GetFields()
	return domain.ExecRequest{
		Operation: domain.Operation(f["operation"].GetStringValue()),
		Path:      f["path"].GetStringValue(),
		Content:   f["content"].GetStringValue(),
		OldText:   f["old_text"].GetStringValue(),
		NewText:   f["new_text"].GetStringValue(),
	}
}

func encodeResponse(resp *domain.ExecResponse) (*structpb.Struct, error) {
	fields := map[string]*structpb.Value{
		"success": structpb.NewBoolValue(resp.Success),
	}
	if resp.Error != "" {
		fields["error"] = structpb.NewStringValue(resp.Error)
	}
	switch v := resp.Data.(type) {
	case nil:
	case string:
		fields["data"] = structpb.NewStringValue(v)
	case []string:
		items := make([]*structpb.Value, len(v))
		for i, name := range v {
			items[i] = structpb.NewStringValue(name)
		}
		fields["data"] = structpb.NewListValue(&structpb.ListValue{Values: items})
	default:
		val, err := structpb.NewValue(v)
		if err != nil {
			return nil, fmt.Errorf("encode data: %w", err)
		}
		fields["data"] = val
	}
	return &structpb.Struct{Fields: fields}, nil
}

func decodeResponse(s *structpb.Struct) (*domain.ExecResponse, error) {
	f := s.GetFields()
	success, ok := f["success"]
	if !ok {
		return nil, fmt.Errorf("response has no success field")
	}
	if _, isBool := success.GetKind().(*structpb.Value_BoolValue); !isBool {
		return nil, fmt.Errorf("success field is not a bool")
	}
	resp := &domain.ExecResponse{
		Success: success.GetBoolValue(),
		Error:   f["error"].GetStringValue(),
	}
	if data, ok := f["data"]; ok {
		resp.Data = data.AsInterface()
	}
	return resp, nil
}
