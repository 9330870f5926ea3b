package notifications

import "fmt"

// Key layout:
//
//	ntf/<recipientId>/<id>                         -> Notification JSON
//	ntfdd/<recipientId>/<senderId>/<postId>/<kind> -> id
//
// IDs are time-sortable hex, so a prefix scan over ntf/<recipientId>/ yields
// records in creation order.
func recordKey(recipientID, id string) []byte {
	return []byte(fmt.Sprintf("ntf/%s/%s", recipientID, id))
}

func recordPrefix(recipientID string) []byte {
	return []byte(fmt.Sprintf("ntf/%s/", recipientID))
}

func dedupKey(recipientID, senderID, postID, kind string) []byte {
	return []byte(fmt.Sprintf("ntfdd/%s/%s/%s/%s", recipientID, senderID, postID, kind))
}
