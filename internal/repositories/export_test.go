package repositories

import "context"

func (s *MongoStore) DropForTest(ctx context.Context) error {
	return s.db.Drop(ctx)
}
