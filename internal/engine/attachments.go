package engine

import (
	"context"
	"errors"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/baiirun/worklog/internal/model"
)

// AddAttachment uploads a file and links it to a work item.
func (s *Service) AddAttachment(ctx context.Context, actor model.Actor, itemID string, file Proof) (out Outcome, err error) {
	const op = "add attachment"
	ctx, end := s.begin(ctx, "AddAttachment", attribute.String("item", itemID))
	defer end(&err)

	item, err := s.getItem(ctx, op, itemID)
	if err != nil {
		return out, err
	}
	if err := s.gate.CheckItem(actor, item, FieldChange(model.FieldAttachments)); err != nil {
		return out, withOp(op, err)
	}

	a, err := s.storeAttachment(ctx, actor, item, file, false)
	if err != nil {
		return out, withOp(op, err)
	}
	out.Item = item
	out.Attachment = a
	s.record(ctx, &out, item.ID, actor.ID, model.EventAttachmentAdded, map[string]any{
		"attachmentId": a.ID,
		"name":         a.Name,
		"url":          a.URL,
	})
	return out, nil
}

// DeleteAttachment removes an attachment record and its file. The
// ATTACHMENT_DELETED event is written first. Only the item owner may.
func (s *Service) DeleteAttachment(ctx context.Context, actor model.Actor, attachmentID string) (out Outcome, err error) {
	const op = "delete attachment"
	ctx, end := s.begin(ctx, "DeleteAttachment", attribute.String("attachment", attachmentID))
	defer end(&err)

	a, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return out, fromStore(op, err)
	}
	item, err := s.getItem(ctx, op, a.ItemID)
	if err != nil {
		return out, err
	}
	if err := s.gate.CheckItem(actor, item, DeleteChange); err != nil {
		return out, withOp(op, err)
	}

	s.record(ctx, &out, item.ID, actor.ID, model.EventAttachmentDeleted, map[string]any{
		"attachmentId": a.ID,
		"name":         a.Name,
	})
	if err := s.store.DeleteAttachment(ctx, a.ID); err != nil {
		return out, fromStore(op, err)
	}
	if s.files != nil {
		if err := s.files.Delete(ctx, a.URL); err != nil {
			s.warn(ctx, &out, "delete attachment file", item.ID, err)
		}
	}
	out.Item = item
	out.Attachment = a
	return out, nil
}

// storeAttachment uploads content and then writes the record. If the record
// cannot be written the uploaded file is removed again.
func (s *Service) storeAttachment(ctx context.Context, actor model.Actor, item *model.WorkItem, file Proof, proof bool) (*model.Attachment, error) {
	if s.files == nil {
		return nil, &Error{Kind: ErrDependency, Msg: "no attachment store configured"}
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(file.Name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, precondition("attachment name is required")
	}

	a := &model.Attachment{
		ID:        model.NewAttachmentID(),
		ItemID:    item.ID,
		Name:      name,
		Proof:     proof,
		AuthorID:  actor.ID,
		CreatedAt: s.now(),
	}
	url, err := s.files.Put(ctx, path.Join("items", item.ID, a.ID+"-"+name), file.Content, file.Progress)
	if err != nil {
		return nil, &Error{Kind: ErrDependency, Msg: "upload " + name, Err: err}
	}
	a.URL = url

	if err := s.store.AddAttachment(ctx, a); err != nil {
		if derr := s.files.Delete(ctx, url); derr != nil {
			s.logger.Warn("orphaned upload", "item", item.ID, "url", url, "error", derr)
		}
		return nil, fromStore("add attachment", err)
	}
	return a, nil
}

// discardAttachment undoes storeAttachment after a later step failed.
func (s *Service) discardAttachment(ctx context.Context, out *Outcome, a *model.Attachment) {
	err := s.store.DeleteAttachment(ctx, a.ID)
	if s.files != nil {
		err = errors.Join(err, s.files.Delete(ctx, a.URL))
	}
	if err != nil {
		s.warn(ctx, out, "discard proof", a.ItemID, err)
	}
}
