// Package notify is the in-process topic hub that carries change
// notifications from record writers to live sessions.
//
// A Hub is safe for concurrent use. Deliveries to one subscriber happen in
// publish order on a goroutine owned by the hub; subscribers must not block.
package notify
