package worker

import (
	"context"

	"github.com/robinjoseph08/golib/logger"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/serenitylibrary/serenity/pkg/reservations"
)

func (w *Worker) ProcessFineAccrualJob(ctx context.Context, _ *models.Job) error {
	_, err := w.fineService.Accrue(ctx)
	return err
}

func (w *Worker) ProcessPrebookingExpiryJob(ctx context.Context, _ *models.Job) error {
	_, err := w.prebookingService.ExpireStale(ctx)
	return err
}

// ProcessOverdueReminderJob queues a reminder for every overdue loan.
func (w *Worker) ProcessOverdueReminderJob(ctx context.Context, _ *models.Job) error {
	overdue, err := w.borrowService.Overdue(ctx)
	if err != nil {
		return err
	}

	for _, record := range overdue {
		w.publisher.Publish(ctx, models.Notification{
			Type:           models.NotificationOverdueReminder,
			UserID:         record.UserID,
			BookID:         record.BookID,
			BorrowRecordID: record.ID,
		})
	}

	logger.FromContext(ctx).Info("queued overdue reminders", logger.Data{"count": len(overdue)})
	return nil
}

// ProcessReservationReminderJob queues a reminder for every approved
// reservation that has not been collected yet.
func (w *Worker) ProcessReservationReminderJob(ctx context.Context, _ *models.Job) error {
	approved, err := w.reservationService.List(ctx, reservations.ListReservationsOptions{
		Statuses: []string{models.ReservationStatusApproved},
	})
	if err != nil {
		return err
	}

	for _, reservation := range approved {
		w.publisher.Publish(ctx, models.Notification{
			Type:          models.NotificationReservationReminder,
			UserID:        reservation.UserID,
			BookID:        reservation.BookID,
			ReservationID: reservation.ID,
		})
	}

	logger.FromContext(ctx).Info("queued reservation reminders", logger.Data{"count": len(approved)})
	return nil
}
