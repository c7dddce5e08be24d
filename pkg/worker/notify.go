package worker

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/serenitylibrary/serenity/pkg/mailer"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/serenitylibrary/serenity/pkg/receipts"
)

var errUnknownType = errors.New("unknown job type")

var notificationTemplates = map[string]string{
	models.NotificationBorrowCreated:       mailer.TemplateBorrowCreated,
	models.NotificationReservationApproved: mailer.TemplateReservationApproved,
	models.NotificationPrebookingCreated:   mailer.TemplatePrebookingCreated,
	models.NotificationPrebookingCancelled: mailer.TemplatePrebookingCancelled,
	models.NotificationPrebookingApproved:  mailer.TemplatePrebookingApproved,
	models.NotificationOverdueReminder:     mailer.TemplateOverdueReminder,
	models.NotificationReservationReminder: mailer.TemplateReservationReminder,
}

// ProcessNotifyJob emails the user a notification, with a receipt attached
// for new loans. A receipt that cannot be rendered only drops the attachment;
// a message that cannot be sent fails the job.
func (w *Worker) ProcessNotifyJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)

	n, ok := job.DataParsed.(*models.Notification)
	if !ok {
		return errors.Errorf("notify job %d has no notification data", job.ID)
	}
	name, ok := notificationTemplates[n.Type]
	if !ok {
		return errors.Errorf("no email template for notification %q", n.Type)
	}

	user := &models.User{}
	if err := w.db.NewSelect().Model(user).Where("u.id = ?", n.UserID).Scan(ctx); err != nil {
		return errors.Wrapf(err, "load user %d", n.UserID)
	}
	book := &models.Book{}
	if err := w.db.NewSelect().Model(book).Where("b.id = ?", n.BookID).Scan(ctx); err != nil {
		return errors.Wrapf(err, "load book %d", n.BookID)
	}

	data := mailer.TemplateData{
		UserName:  user.Name,
		BookTitle: book.Title,
	}
	if n.PickupDeadline != nil {
		data.PickupDeadline = *n.PickupDeadline
	}
	if n.BorrowRecordID != 0 {
		record := &models.BorrowRecord{}
		err := w.db.NewSelect().Model(record).Where("br.id = ?", n.BorrowRecordID).Scan(ctx)
		if err != nil {
			return errors.Wrapf(err, "load borrow record %d", n.BorrowRecordID)
		}
		data.BorrowDate = record.BorrowDate
		data.DueDate = record.DueDate
	}

	msg, err := mailer.Render(name, user.Email, data)
	if err != nil {
		return err
	}

	if n.WantsReceipt() && w.receipts != nil {
		details := receipts.Details{
			UserName:   user.Name,
			Email:      user.Email,
			BookTitle:  book.Title,
			BorrowDate: data.BorrowDate,
			DueDate:    data.DueDate,
		}
		if user.PhoneNumber != nil {
			details.PhoneNumber = *user.PhoneNumber
		}
		path, err := w.receipts.Generate(ctx, details)
		if err != nil {
			log.Err(err).Warn("receipt generation failed, sending without attachment")
		} else {
			msg.AttachmentPath = path
			defer func() {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					log.Err(err).Warn("failed to remove receipt", logger.Data{"path": path})
				}
			}()
		}
	}

	return w.sender.Send(ctx, msg)
}
