package servicebus

var NewPostEventQueueWithSender = newPostEventQueue
