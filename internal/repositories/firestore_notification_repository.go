package repositories

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/anonto42/eyewitness/backend/internal/models"
)

const notificationsCollection = "notifications"

// firestoreNotificationRepository keeps notifications in a subcollection of
// the recipient's user document: users/{uid}/notifications/{id}.
type firestoreNotificationRepository struct {
	client *firestore.Client
}

func NewFirestoreNotificationRepository(client *firestore.Client) NotificationRepository {
	return &firestoreNotificationRepository{client: client}
}

func (r *firestoreNotificationRepository) inbox(recipientID string) *firestore.CollectionRef {
	return r.client.Collection(usersCollection).Doc(recipientID).Collection(notificationsCollection)
}

func (r *firestoreNotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	ref := r.inbox(n.RecipientID).NewDoc()
	if n.ID != "" {
		ref = r.inbox(n.RecipientID).Doc(n.ID)
	}
	if _, err := ref.Create(ctx, n); err != nil {
		return firestoreErr(err)
	}
	n.ID = ref.ID
	return nil
}

func (r *firestoreNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	return count(ctx, r.inbox(recipientID).Where("read", "==", false))
}

func (r *firestoreNotificationRepository) HasDedupKey(ctx context.Context, recipientID, key string) (bool, error) {
	snaps, err := r.inbox(recipientID).Where("dedupKey", "==", key).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return false, err
	}
	return len(snaps) > 0, nil
}

func (r *firestoreNotificationRepository) UpdatePostNotification(ctx context.Context, from string, n *models.Notification) (bool, error) {
	snaps, err := r.inbox(n.RecipientID).
		Where("postId", "==", n.PostID).
		Where("type", "==", from).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return false, err
	}
	if len(snaps) == 0 {
		return false, nil
	}
	existing, err := notificationFromSnapshot(n.RecipientID, snaps[0])
	if err != nil {
		return false, err
	}

	updates := []firestore.Update{
		{Path: "type", Value: n.Type},
		{Path: "message", Value: n.Message},
	}
	if n.RejectionReason != "" {
		updates = append(updates, firestore.Update{Path: "rejectionReason", Value: n.RejectionReason})
	}
	if _, err := snaps[0].Ref.Update(ctx, updates); err != nil {
		return false, firestoreErr(err)
	}
	n.ID = existing.ID
	n.Read = existing.Read
	n.Timestamp = existing.Timestamp
	return true, nil
}

func (r *firestoreNotificationRepository) ListNotifications(ctx context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error) {
	total, err := count(ctx, r.inbox(recipientID).Query)
	if err != nil {
		return nil, 0, err
	}
	q := r.inbox(recipientID).OrderBy("timestamp", firestore.Desc).Offset((page - 1) * limit).Limit(limit)
	list, err := notifications(ctx, recipientID, q)
	return list, total, err
}

func (r *firestoreNotificationRepository) GroupNotifications(ctx context.Context, recipientID string, now time.Time) (*models.NotificationGroups, error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	recent := r.inbox(recipientID).Where("timestamp", ">=", weekStart).OrderBy("timestamp", firestore.Desc)
	list, err := notifications(ctx, recipientID, recent)
	if err != nil {
		return nil, err
	}
	groups := &models.NotificationGroups{}
	for _, n := range list {
		switch {
		case !n.Timestamp.Before(todayStart):
			groups.Today = append(groups.Today, n)
		case !n.Timestamp.Before(yesterdayStart):
			groups.Yesterday = append(groups.Yesterday, n)
		default:
			groups.ThisWeek = append(groups.ThisWeek, n)
		}
	}

	older := r.inbox(recipientID).Where("timestamp", "<", weekStart).OrderBy("timestamp", firestore.Desc).Limit(olderLimit)
	if groups.Older, err = notifications(ctx, recipientID, older); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *firestoreNotificationRepository) GetNotification(ctx context.Context, recipientID, id string) (*models.Notification, error) {
	snap, err := r.inbox(recipientID).Doc(id).Get(ctx)
	if err != nil {
		return nil, firestoreErr(err)
	}
	return notificationFromSnapshot(recipientID, snap)
}

func (r *firestoreNotificationRepository) MarkAsRead(ctx context.Context, recipientID, id string) error {
	_, err := r.inbox(recipientID).Doc(id).Update(ctx, []firestore.Update{{Path: "read", Value: true}})
	return firestoreErr(err)
}

func (r *firestoreNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID string) error {
	snaps, err := r.inbox(recipientID).Where("read", "==", false).Documents(ctx).GetAll()
	if err != nil {
		return err
	}
	_, err = r.bulk(ctx, snaps, func(bw *firestore.BulkWriter, ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error) {
		return bw.Update(ref, []firestore.Update{{Path: "read", Value: true}})
	})
	return err
}

func (r *firestoreNotificationRepository) DeleteNotification(ctx context.Context, recipientID, id string) error {
	_, err := r.inbox(recipientID).Doc(id).Delete(ctx, firestore.Exists)
	return firestoreErr(err)
}

func (r *firestoreNotificationRepository) DeleteAllNotifications(ctx context.Context, recipientID string) (int64, error) {
	snaps, err := r.inbox(recipientID).Select().Documents(ctx).GetAll()
	if err != nil {
		return 0, err
	}
	return r.bulk(ctx, snaps, func(bw *firestore.BulkWriter, ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error) {
		return bw.Delete(ref)
	})
}

// bulk applies op to every document with a BulkWriter and returns how many succeeded.
func (r *firestoreNotificationRepository) bulk(
	ctx context.Context,
	snaps []*firestore.DocumentSnapshot,
	op func(*firestore.BulkWriter, *firestore.DocumentRef) (*firestore.BulkWriterJob, error),
) (int64, error) {
	if len(snaps) == 0 {
		return 0, nil
	}
	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(snaps))
	for _, s := range snaps {
		job, err := op(bw, s.Ref)
		if err != nil {
			bw.End()
			return 0, err
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var done int64
	var firstErr error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		done++
	}
	return done, firstErr
}

func count(ctx context.Context, q firestore.Query) (int64, error) {
	res, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result %T", res["all"])
	}
	return v.GetIntegerValue(), nil
}

func notifications(ctx context.Context, recipientID string, q firestore.Query) ([]models.Notification, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(snaps))
	for _, s := range snaps {
		n, err := notificationFromSnapshot(recipientID, s)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}

func notificationFromSnapshot(recipientID string, snap *firestore.DocumentSnapshot) (*models.Notification, error) {
	var n models.Notification
	if err := snap.DataTo(&n); err != nil {
		return nil, err
	}
	n.ID = snap.Ref.ID
	n.RecipientID = recipientID
	return &n, nil
}
