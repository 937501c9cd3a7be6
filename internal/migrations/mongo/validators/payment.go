package validators

import "go.mongodb.org/mongo-driver/bson"

var PaymentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"reservation_id",
			"amount",
			"method",
			"status",
			"timestamp",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"reservation_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"amount": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
			},

			"method": bson.M{
				"enum": []string{"card", "paypal"},
			},

			"status": bson.M{
				"enum": []string{"pending", "completed", "failed", "refunded"},
			},

			"timestamp": bson.M{
				"bsonType": "date",
			},
		},
	},
}
