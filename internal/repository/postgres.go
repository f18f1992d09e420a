package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/dbx"
	"auction-engine/internal/models"
	"auction-engine/internal/repository/migrations"
	"auction-engine/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
)

const auctionColumns = `id, seller_id, category_id, title, starting_price, current_price, price_step,
	buy_now_price, status, end_time, winner_id, bid_count, auto_extend, allow_unrated, created_at`

const bidColumns = `id, auction_id, bidder_id, amount, max_amount, created_at`

// PostgresRepo implements AuctionDB over database/sql with the pgx driver.
// Money columns are NUMERIC(20,2); the engine only ever writes whole units.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo wraps an open connection pool
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Open connects to Postgres and verifies the connection
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// WithinTx runs fn in a READ COMMITTED transaction. Rows locked with
// LockAuction stay locked until commit or rollback.
func (r *PostgresRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	err := dbx.WithTx(ctx, r.db, opts, func(ctx context.Context, q dbx.DBTX) error {
		return fn(ctx, &pgTx{q: q})
	})
	return classify(err)
}

// classify tags retryable storage failures with ErrTransient
func classify(err error) error {
	if err == nil || errors.Is(err, biddingerrors.ErrTransient) {
		return err
	}
	if dbx.IsTransient(err) {
		return fmt.Errorf("%w: %w", biddingerrors.ErrTransient, err)
	}
	return err
}

// GetAuction returns an auction without locking it
func (r *PostgresRepo) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	a, err := getAuction(ctx, r.db, auctionID, false)
	return a, classify(err)
}

// auctionOrder is the ORDER BY clause per listing sort
var auctionOrder = map[AuctionSort]string{
	"":             "created_at DESC, id",
	SortNewest:     "created_at DESC, id",
	SortEndingSoon: "end_time, created_at DESC, id",
	SortPriceAsc:   "current_price, created_at DESC, id",
	SortPriceDesc:  "current_price DESC, created_at DESC, id",
}

// ListAuctions returns one page of auctions matching filter in the requested order
func (r *PostgresRepo) ListAuctions(ctx context.Context, filter AuctionFilter) ([]models.Auction, error) {
	order, ok := auctionOrder[filter.Sort]
	if !ok {
		return nil, fmt.Errorf("list auctions: %w - unknown sort %q", biddingerrors.ErrInvalidBid, filter.Sort)
	}

	var (
		where []string
		args  []any
	)
	add := func(cond string, vs ...any) {
		idx := make([]any, len(vs))
		for i, v := range vs {
			args = append(args, v)
			idx[i] = len(args)
		}
		where = append(where, fmt.Sprintf(cond, idx...))
	}
	if filter.CategoryID != "" {
		add("category_id = $%d", filter.CategoryID)
	}
	if filter.SellerID != "" {
		add("seller_id = $%d", filter.SellerID)
	}
	switch {
	case filter.Status == "":
	case filter.Now.IsZero():
		add("status = $%d", string(filter.Status))
	case filter.Status == models.StatusActive:
		add("status = $%d AND end_time > $%d", string(models.StatusActive), filter.Now)
	case filter.Status == models.StatusEnded:
		add("(status = $%d OR (status = $%d AND end_time <= $%d))",
			string(models.StatusEnded), string(models.StatusActive), filter.Now)
	default:
		add("status = $%d", string(filter.Status))
	}

	query := `SELECT ` + auctionColumns + ` FROM auctions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + order
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("db error: %w", err))
	}
	defer rows.Close()

	out := []models.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// GetBidsByAuction returns the bid history of an auction, oldest first
func (r *PostgresRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	bids, err := listBids(ctx, r.db, auctionID)
	if err != nil {
		return nil, classify(err)
	}
	if len(bids) > 0 {
		return bids, nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM auctions WHERE id = $1)`, auctionID).Scan(&exists)
	if err != nil {
		return nil, classify(fmt.Errorf("db error: %w", err))
	}
	if !exists {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return bids, nil
}

// GetReputation reads a user's rating counters. Unknown users are unrated.
func (r *PostgresRepo) GetReputation(ctx context.Context, userID string) (models.Reputation, error) {
	return getReputation(ctx, r.db, userID)
}

func getReputation(ctx context.Context, q dbx.DBTX, userID string) (models.Reputation, error) {
	var rep models.Reputation
	err := q.QueryRowContext(ctx,
		`SELECT total_ratings, positive_ratings FROM users WHERE id = $1`, userID,
	).Scan(&rep.TotalRatings, &rep.PositiveRatings)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reputation{}, nil
	}
	if err != nil {
		return models.Reputation{}, classify(fmt.Errorf("db error: %w", err))
	}
	return rep, nil
}

// FavoriteCount returns how many users watch an auction
func (r *PostgresRepo) FavoriteCount(ctx context.Context, auctionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE auction_id = $1`, auctionID).Scan(&n)
	if err != nil {
		return 0, classify(fmt.Errorf("db error: %w", err))
	}
	return n, nil
}

// IsFavorite reports whether userID watches auctionID
func (r *PostgresRepo) IsFavorite(ctx context.Context, auctionID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM favorites WHERE auction_id = $1 AND user_id = $2)`, auctionID, userID,
	).Scan(&ok)
	if err != nil {
		return false, classify(fmt.Errorf("db error: %w", err))
	}
	return ok, nil
}

// ExpireAuctions ends active auctions past their end time. The UPDATE waits on
// rows locked by in-flight bids and re-checks end_time once they commit.
func (r *PostgresRepo) ExpireAuctions(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auctions SET status = $1 WHERE status = $2 AND end_time <= $3`,
		string(models.StatusEnded), string(models.StatusActive), now,
	)
	if err != nil {
		return 0, classify(fmt.Errorf("db error: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return int(n), nil
}

// pgTx is the Tx handed to WithinTx callbacks
type pgTx struct {
	q dbx.DBTX
}

func (t *pgTx) LockAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	return getAuction(ctx, t.q, auctionID, true)
}

func (t *pgTx) ListBids(ctx context.Context, auctionID string) ([]models.Bid, error) {
	return listBids(ctx, t.q, auctionID)
}

func (t *pgTx) GetReputation(ctx context.Context, userID string) (models.Reputation, error) {
	return getReputation(ctx, t.q, userID)
}

func (t *pgTx) InsertBid(ctx context.Context, bid models.Bid) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO bids (`+bidColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		bid.BidID, bid.AuctionID, bid.BidderID, toDecimal(bid.Amount), toDecimal(bid.MaxAmount), bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteBid(ctx context.Context, auctionID, bidID string) (models.Bid, error) {
	row := t.q.QueryRowContext(ctx,
		`DELETE FROM bids WHERE id = $1 AND auction_id = $2 RETURNING `+bidColumns,
		bidID, auctionID,
	)
	b, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bid{}, fmt.Errorf("delete bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
	}
	if err != nil {
		return models.Bid{}, fmt.Errorf("delete bid: %w", err)
	}
	return b, nil
}

func (t *pgTx) UpdateAuction(ctx context.Context, a models.Auction) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE auctions SET current_price = $2, status = $3, end_time = $4, winner_id = $5, bid_count = $6
		WHERE id = $1`,
		a.AuctionID, toDecimal(a.CurrentPrice), string(a.Status), a.EndTime, nullString(a.WinnerID), a.BidCount,
	)
	if err != nil {
		return fmt.Errorf("update auction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("update auction %s: %w", a.AuctionID, biddingerrors.ErrAuctionNotFound)
	}
	return nil
}

func (t *pgTx) CreateOrder(ctx context.Context, o models.Order) (string, error) {
	if o.OrderID == "" {
		o.OrderID = utils.GenerateID()
	}
	var id string
	err := t.q.QueryRowContext(ctx,
		`INSERT INTO orders (id, auction_id, buyer_id, seller_id, final_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		o.OrderID, o.AuctionID, o.BuyerID, o.SellerID, toDecimal(o.FinalPrice), o.Status, o.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	return id, nil
}

func getAuction(ctx context.Context, q dbx.DBTX, auctionID string, forUpdate bool) (models.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAuction(q.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return models.Auction{}, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func listBids(ctx context.Context, q dbx.DBTX, auctionID string) ([]models.Bid, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id = $1 ORDER BY created_at, id`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to select bids: %w", err)
	}
	defer rows.Close()

	out := []models.Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(s scanner) (models.Auction, error) {
	var (
		a                       models.Auction
		starting, current, step decimal.Decimal
		buyNow                  decimal.NullDecimal
		winner                  sql.NullString
		status                  string
	)
	err := s.Scan(
		&a.AuctionID, &a.SellerID, &a.CategoryID, &a.Title,
		&starting, &current, &step, &buyNow,
		&status, &a.EndTime, &winner, &a.BidCount,
		&a.AutoExtend, &a.AllowUnrated, &a.CreatedAt,
	)
	if err != nil {
		return models.Auction{}, err
	}

	a.StartingPrice = fromDecimal(starting)
	a.CurrentPrice = fromDecimal(current)
	a.PriceStep = fromDecimal(step)
	if buyNow.Valid {
		v := fromDecimal(buyNow.Decimal)
		a.BuyNowPrice = &v
	}
	a.Status = models.AuctionStatus(status)
	if winner.Valid {
		w := winner.String
		a.WinnerID = &w
	}
	return a, nil
}

func scanBid(s scanner) (models.Bid, error) {
	var (
		b               models.Bid
		amount, ceiling decimal.Decimal
	)
	if err := s.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &amount, &ceiling, &b.CreatedAt); err != nil {
		return models.Bid{}, err
	}
	b.Amount = fromDecimal(amount)
	b.MaxAmount = fromDecimal(ceiling)
	return b, nil
}

func toDecimal(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func fromDecimal(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
