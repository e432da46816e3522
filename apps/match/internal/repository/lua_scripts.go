package repository

const (
	// luaAddQueueMemberIfExists 队列成员写入（仅在缓存已建立时增量更新）
	// KEYS[1]: 匹配队列 ZSet
	// ARGV[1]: score(joined_at 毫秒时间戳)
	// ARGV[2]: member(user_uuid)
	// ARGV[3]: 过期时间（秒）
	// 返回: 1 表示写入成功，0 表示 key 不存在
	luaAddQueueMemberIfExists = `
if redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('ZREM', KEYS[1], '__EMPTY__')
	redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
	redis.call('EXPIRE', KEYS[1], ARGV[3])
	return 1
end
return 0
`

	// luaRemoveQueueMemberIfExists 队列成员移除（仅在缓存已建立时增量更新）
	// 移除后队列为空时放回空值占位，避免下一次读穿透到 MySQL
	// KEYS[1]: 匹配队列 ZSet
	// ARGV[1]: member(user_uuid)
	// ARGV[2]: 过期时间（秒）
	// 返回: 1 表示执行成功，0 表示 key 不存在
	luaRemoveQueueMemberIfExists = `
if redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('ZREM', KEYS[1], ARGV[1])
	redis.call('ZREM', KEYS[1], '__EMPTY__')
	if redis.call('ZCARD', KEYS[1]) == 0 then
		redis.call('ZADD', KEYS[1], 0, '__EMPTY__')
	end
	redis.call('EXPIRE', KEYS[1], ARGV[2])
	return 1
end
return 0
`
)
