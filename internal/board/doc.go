// Package board is the single owner of rankboard's entity store.
//
// Producers hand complete snapshot batches to [Board.Apply], which
// reconciles them into the store, re-ranks by the configured series and
// publishes a [Frame] to subscribers. All mutation happens under one lock,
// which is the only synchronization the store and ranker rely on.
package board
